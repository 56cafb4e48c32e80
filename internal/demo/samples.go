package demo

type sample struct {
	AppName     string
	WindowTitle string
	Analysis    map[string]any
}

func (s sample) interrupt() (message, priority string, ok bool) {
	if v, _ := s.Analysis["should_interrupt"].(bool); !v {
		return "", "", false
	}
	message, _ = s.Analysis["interrupt_message"].(string)
	priority, _ = s.Analysis["priority"].(string)
	return message, priority, message != ""
}

var samples = []sample{
	{
		AppName:     "VS Code",
		WindowTitle: "nexus/main.py - NEXUS",
		Analysis: map[string]any{
			"activity":         "Writing Python code for NEXUS main application",
			"intent":           "Building the main entry point for the AI assistant",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"coding", "python", "development"},
			"priority":         "medium",
		},
	},
	{
		AppName:     "Chrome",
		WindowTitle: "Claude API Documentation - Anthropic",
		Analysis: map[string]any{
			"activity":         "Reading Claude API documentation",
			"intent":           "Learning how to integrate Claude vision API",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"research", "api", "documentation"},
			"priority":         "low",
		},
	},
	{
		AppName:     "Mail",
		WindowTitle: "Re: Project Update - Compose",
		Analysis: map[string]any{
			"activity":          "Composing email reply about project update",
			"intent":            "Sending status report to team",
			"issues":            []string{"User mentioned 'attached' but no attachment visible"},
			"should_interrupt":  true,
			"interrupt_message": "You mentioned an attachment but didn't attach anything!",
			"tags":              []string{"email", "communication", "work"},
			"priority":          "high",
		},
	},
	{
		AppName:     "Slack",
		WindowTitle: "#general - Slack",
		Analysis: map[string]any{
			"activity":         "Chatting in team Slack channel",
			"intent":           "Team communication and updates",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"communication", "team", "slack"},
			"priority":         "low",
		},
	},
	{
		AppName:     "Chrome",
		WindowTitle: "GitHub - NEXUS",
		Analysis: map[string]any{
			"activity":         "Reviewing GitHub repository for NEXUS project",
			"intent":           "Checking code commits and pull requests",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"github", "code-review", "development"},
			"priority":         "medium",
		},
	},
	{
		AppName:     "Notes",
		WindowTitle: "Meeting Notes - Product Planning",
		Analysis: map[string]any{
			"activity":         "Taking notes during product planning meeting",
			"intent":           "Documenting decisions and action items",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"notes", "meeting", "planning"},
			"priority":         "medium",
		},
	},
	{
		AppName:     "Terminal",
		WindowTitle: "zsh - nexus",
		Analysis: map[string]any{
			"activity":         "Running commands in terminal",
			"intent":           "Testing and debugging application",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"terminal", "development", "testing"},
			"priority":         "low",
		},
	},
	{
		AppName:     "Figma",
		WindowTitle: "NEXUS UI Design - Figma",
		Analysis: map[string]any{
			"activity":         "Designing UI mockups for NEXUS interface",
			"intent":           "Creating visual design for the application",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"design", "ui", "figma"},
			"priority":         "medium",
		},
	},
	{
		AppName:     "Calendar",
		WindowTitle: "February 2026 - Calendar",
		Analysis: map[string]any{
			"activity":          "Checking calendar for upcoming meetings",
			"intent":            "Planning schedule for the day",
			"issues":            []string{"Meeting in 15 minutes with John"},
			"should_interrupt":  true,
			"interrupt_message": "Reminder: Meeting with John in 15 minutes!",
			"tags":              []string{"calendar", "meetings", "scheduling"},
			"priority":          "high",
		},
	},
	{
		AppName:     "Chrome",
		WindowTitle: "Stack Overflow - How to use asyncio in Python",
		Analysis: map[string]any{
			"activity":         "Researching async programming in Python",
			"intent":           "Learning asyncio patterns for better code",
			"issues":           []string{},
			"should_interrupt": false,
			"tags":             []string{"research", "python", "stackoverflow"},
			"priority":         "low",
		},
	},
}
