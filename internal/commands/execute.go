package commands

import "fmt"

type Result struct {
	Message string
	Quit    bool
}

type Handlers struct {
	Done     func(TargetArgs) (Result, error)
	Undo     func(TargetArgs) (Result, error)
	Note     func(NoteArgs) (Result, error)
	Notify   func() (Result, error)
	Timezone func(TimezoneArgs) (Result, error)
	List     func() (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeDone:
		if handlers.Done == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Done(*cmd.Target)
	case TypeUndo:
		if handlers.Undo == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Undo(*cmd.Target)
	case TypeNote:
		if handlers.Note == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Note(*cmd.Note)
	case TypeNotify:
		if handlers.Notify == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Notify()
	case TypeTimezone:
		if handlers.Timezone == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Timezone(*cmd.Timezone)
	case TypeList:
		if handlers.List == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.List()
	case TypeHelp:
		return Result{Message: Usage()}, nil
	case TypeQuit:
		return Result{Message: "shutting down", Quit: true}, nil
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
