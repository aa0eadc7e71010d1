package web

// DietSection is one card of the diet routine page.
type DietSection struct {
	Title string
	Items []string
}

// DietRoutine is the static content of the diet page.
var DietRoutine = []DietSection{
	{
		Title: "Meal Timing",
		Items: []string{
			"Breakfast: 7-8 AM",
			"Lunch: 12-1 PM",
			"Dinner: 6-7 PM",
			"Last meal: 3-4 hours before bedtime",
			"Avoid heavy meals close to sleep",
		},
	},
	{
		Title: "Sleep-Friendly Foods",
		Items: []string{
			"Tryptophan-rich foods: Turkey, chicken, fish",
			"Complex carbohydrates: Whole grains, sweet potatoes",
			"Magnesium-rich foods: Leafy greens, nuts, seeds",
			"Calcium-rich foods: Dairy, fortified plant milk",
			"Foods to avoid: Caffeine, alcohol, spicy foods",
		},
	},
	{
		Title: "Daily Hydration",
		Items: []string{
			"Morning: 2-3 glasses of water",
			"Throughout day: 6-8 glasses",
			"Evening: 1-2 glasses (2 hours before bed)",
			"Limit fluids close to bedtime",
			"Avoid caffeine after mid-day",
		},
	},
	{
		Title: "Nutrient-Rich Foods",
		Items: []string{
			"Proteins: Lean meats, fish, eggs, legumes",
			"Healthy fats: Avocados, nuts, olive oil",
			"Complex carbs: Whole grains, vegetables",
			"Vitamins: Fruits, vegetables, dairy",
			"Minerals: Leafy greens, nuts, seeds",
		},
	},
}

// DietTips are shown below the sections.
var DietTips = []string{
	"Keep a food diary to track sleep patterns",
	"Eat mindfully and avoid overeating",
	"Stay consistent with meal times",
	"Consider portion sizes for better digestion",
	"Listen to your body's hunger signals",
}
