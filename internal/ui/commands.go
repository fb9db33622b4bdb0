package ui

import "strings"

// CommandKind identifies an interactive command.
type CommandKind int

const (
	CmdCaption CommandKind = iota
	CmdMute
	CmdVideo
	CmdShare
	CmdAnalyze
	CmdReport
	CmdRoom
	CmdHelp
	CmdQuit
	CmdUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	// Args holds the words after the command name. For CmdCaption it
	// holds the whole line as a single element.
	Args []string
}

var commandHelp = []struct {
	name, usage, text string
	kind              CommandKind
}{
	{"mute", "/mute", "toggle the microphone", CmdMute},
	{"video", "/video", "toggle the camera", CmdVideo},
	{"share", "/share", "show the candidate link", CmdShare},
	{"analyze", "/analyze <resume.pdf> <job role>", "analyze a resume for this room", CmdAnalyze},
	{"report", "/report", "print the evaluation report link", CmdReport},
	{"room", "/room <name>", "leave and join another room", CmdRoom},
	{"help", "/help", "show this table", CmdHelp},
	{"quit", "/quit", "end the session", CmdQuit},
}

// ParseCommand parses one line of input. Blank lines return false. Lines
// that do not start with a slash are captions.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, false
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdCaption, Args: []string{line}}, true
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return Command{Kind: CmdUnknown}, true
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	for _, c := range commandHelp {
		if c.name != name {
			continue
		}
		if c.kind == CmdAnalyze && len(args) > 1 {
			args = []string{args[0], strings.Join(args[1:], " ")}
		}
		return Command{Kind: c.kind, Args: args}, true
	}
	return Command{Kind: CmdUnknown, Args: fields}, true
}
