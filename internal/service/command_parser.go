package service

import (
	"regexp"
	"strings"
)

var optionCommandRegex = regexp.MustCompile(`^/option=([1-9])$`)

// Command types understood by the chatbot relay without a backend call.
const (
	CommandOptions = "options"
	CommandOption  = "option"
)

// Command represents a parsed chat command
type Command struct {
	Type  string
	Index int
}

// ParseCommand attempts to parse a message as a command.
// "/options" lists the canned prompts; "/option=N" sends prompt N (1-based).
func ParseCommand(content string) (*Command, bool) {
	content = strings.TrimSpace(content)

	if strings.EqualFold(content, "/options") {
		return &Command{Type: CommandOptions}, true
	}

	if matches := optionCommandRegex.FindStringSubmatch(content); matches != nil {
		return &Command{
			Type:  CommandOption,
			Index: int(matches[1][0] - '0'),
		}, true
	}

	return nil, false
}
