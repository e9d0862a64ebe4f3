package commands

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeDone     Type = "done"
	TypeUndo     Type = "undo"
	TypeNote     Type = "note"
	TypeNotify   Type = "notify"
	TypeTimezone Type = "tz"
	TypeList     Type = "list"
	TypeHelp     Type = "help"
	TypeQuit     Type = "quit"
)

var aliases = map[string]Type{
	"complete": TypeDone,
	"x":        TypeDone,
	"pending":  TypeUndo,
	"journal":  TypeNote,
	"timezone": TypeTimezone,
	"ls":       TypeList,
	"?":        TypeHelp,
	"exit":     TypeQuit,
	"q":        TypeQuit,
}

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type TargetArgs struct {
	ID string
}

type NoteArgs struct {
	Text string
}

type TimezoneArgs struct {
	Name string
}

type Command struct {
	Type     Type
	Raw      string
	Target   *TargetArgs
	Note     *NoteArgs
	Timezone *TimezoneArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, ":") {
		raw = strings.TrimSpace(raw[1:])
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	typ := Type(head)
	if alias, ok := aliases[head]; ok {
		typ = alias
	}

	switch typ {
	case TypeDone, TypeUndo:
		return parseTarget(input, typ, args)
	case TypeNote:
		return parseNote(input, raw, parts[0])
	case TypeTimezone:
		return parseTimezone(input, args)
	case TypeNotify, TypeList, TypeHelp, TypeQuit:
		return Command{Type: typ, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseTarget(raw string, typ Type, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires exactly one task id", typ)}
	}
	id := strings.TrimPrefix(args[0], "#")
	if id == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a task id", typ)}
	}
	return Command{Type: typ, Raw: raw, Target: &TargetArgs{ID: id}}, nil
}

// parseNote keeps the note text as typed, including inner spacing.
func parseNote(raw, trimmed, head string) (Command, error) {
	text := strings.TrimSpace(strings.TrimPrefix(trimmed, head))
	if text == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "note requires text"}
	}
	return Command{Type: TypeNote, Raw: raw, Note: &NoteArgs{Text: text}}, nil
}

func parseTimezone(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "tz requires a zone name, e.g. tz Asia/Kolkata"}
	}
	return Command{Type: TypeTimezone, Raw: raw, Timezone: &TimezoneArgs{Name: args[0]}}, nil
}

// Usage lists the commands for help output.
func Usage() string {
	return strings.Join([]string{
		"done <id>      mark a task done",
		"undo <id>      mark a task pending again",
		"note <text>    add a note for today's journal",
		"notify         send the pending-task notification now",
		"tz <zone>      switch timezone (must be configured)",
		"list           show all tasks",
		"help           show this help",
		"quit           exit and write the journal",
	}, "\n")
}
