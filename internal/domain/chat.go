package domain

// ChatGreeting is the assistant's first message in every conversation.
const ChatGreeting = "Hello! I'm your sleep assistant. Click on any option below to get started:"

// MaxChatMessageLength bounds a single user message.
const MaxChatMessageLength = 1000

// ChatOptions are the canned prompts offered with the greeting.
var ChatOptions = []string{
	"How can I improve my sleep quality?",
	"What's the recommended sleep duration?",
	"How does diet affect sleep?",
	"What are good sleep hygiene practices?",
	"How can I create a sleep routine?",
}
