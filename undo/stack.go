// Package undo implements a document-scoped undo stack. Commands are
// reversible units of mutation; consecutive commands sharing an id can be
// compressed into one undo step.
package undo

import (
	"context"

	"github.com/goliatone/go-layerdoc/pkg/activity"
	"github.com/rs/zerolog"
)

// NoID marks a command that never merges.
const NoID = -1

// firstID is the first value handed out by NextID.
const firstID = 10

// Command is a reversible mutation.
type Command interface {
	Redo()
	Undo()
	ID() int
	Text() string
}

// Merger is implemented by commands that can absorb a following command
// with the same id. MergeWith returns false to refuse.
type Merger interface {
	MergeWith(other Command) bool
}

// Option configures a Stack.
type Option func(*Stack)

// WithLimit caps the number of retained commands; the oldest are dropped.
// Zero means unlimited.
func WithLimit(limit int) Option {
	return func(s *Stack) {
		if limit >= 0 {
			s.limit = limit
		}
	}
}

// WithLogger sets the stack logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Stack) {
		s.logger = logger
	}
}

// WithEmitter reports pushes, undos and redos as activity events.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(s *Stack) {
		s.emitter = emitter
	}
}

// WithDocumentID labels emitted activity with a document identity.
func WithDocumentID(id string) Option {
	return func(s *Stack) {
		s.documentID = id
	}
}

// Stack holds applied commands below index and undone commands above it.
type Stack struct {
	commands   []Command
	index      int
	clean      int
	nextID     int
	lastID     int
	applying   bool
	limit      int
	logger     zerolog.Logger
	emitter    *activity.Emitter
	documentID string
}

// NewStack returns an empty, clean stack.
func NewStack(opts ...Option) *Stack {
	s := &Stack{
		nextID: firstID,
		lastID: NoID,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetDocumentID labels later activity events.
func (s *Stack) SetDocumentID(id string) {
	s.documentID = id
}

// SetEmitter replaces the activity emitter.
func (s *Stack) SetEmitter(emitter *activity.Emitter) {
	s.emitter = emitter
}

// NextID returns a fresh compression id.
func (s *Stack) NextID() int {
	id := s.nextID
	s.nextID++
	return id
}

// IsApplying reports whether a command is currently running Redo or Undo
// through the stack.
func (s *Stack) IsApplying() bool {
	return s.applying
}

func (s *Stack) apply(fn func()) {
	s.applying = true
	defer func() { s.applying = false }()
	fn()
}

// Push runs cmd.Redo and records it, discarding any undone commands. When
// the top command has the same id (other than NoID) and accepts the merge,
// cmd is folded into it and Push returns true. Pushes issued while the
// stack is applying a command are ignored.
func (s *Stack) Push(cmd Command) bool {
	if cmd == nil {
		return false
	}
	if s.applying {
		s.logger.Debug().Str("command", cmd.Text()).Msg("undo: push ignored while applying")
		return false
	}
	s.apply(cmd.Redo)

	s.commands = s.commands[:s.index]
	if s.clean > s.index {
		s.clean = -1
	}

	if s.index > 0 && cmd.ID() != NoID {
		top := s.commands[s.index-1]
		if top.ID() == cmd.ID() {
			if merger, ok := top.(Merger); ok && merger.MergeWith(cmd) {
				s.logger.Debug().Int("id", cmd.ID()).Str("command", cmd.Text()).Msg("undo: merged")
				if s.clean == s.index {
					s.clean = -1
				}
				return true
			}
		}
	}

	s.commands = append(s.commands, cmd)
	s.index++
	s.trim()
	s.logger.Debug().Int("id", cmd.ID()).Str("command", cmd.Text()).Int("index", s.index).Msg("undo: pushed")

	if cmd.ID() == NoID || cmd.ID() != s.lastID {
		s.emit(activity.BuildCommandPushedEvent, cmd, s.index-1)
	}
	s.lastID = cmd.ID()
	return false
}

func (s *Stack) trim() {
	if s.limit <= 0 || len(s.commands) <= s.limit {
		return
	}
	drop := len(s.commands) - s.limit
	s.commands = append([]Command(nil), s.commands[drop:]...)
	s.index -= drop
	if s.clean >= 0 {
		s.clean -= drop
		if s.clean < 0 {
			s.clean = -1
		}
	}
}

// Undo reverts the most recently applied command.
func (s *Stack) Undo() bool {
	if s.applying || s.index == 0 {
		return false
	}
	cmd := s.commands[s.index-1]
	s.apply(cmd.Undo)
	s.index--
	s.lastID = NoID
	s.logger.Debug().Str("command", cmd.Text()).Int("index", s.index).Msg("undo: undone")
	s.emit(activity.BuildCommandUndoneEvent, cmd, s.index)
	return true
}

// Redo reapplies the most recently undone command.
func (s *Stack) Redo() bool {
	if s.applying || s.index == len(s.commands) {
		return false
	}
	cmd := s.commands[s.index]
	s.apply(cmd.Redo)
	s.index++
	s.lastID = NoID
	s.logger.Debug().Str("command", cmd.Text()).Int("index", s.index).Msg("undo: redone")
	s.emit(activity.BuildCommandRedoneEvent, cmd, s.index-1)
	return true
}

// Clear drops every command. The empty stack counts as clean.
func (s *Stack) Clear() {
	s.commands = nil
	s.index = 0
	s.clean = 0
	s.lastID = NoID
}

// CanUndo reports whether Undo would do anything.
func (s *Stack) CanUndo() bool { return !s.applying && s.index > 0 }

// CanRedo reports whether Redo would do anything.
func (s *Stack) CanRedo() bool { return !s.applying && s.index < len(s.commands) }

// Count returns the number of retained commands.
func (s *Stack) Count() int { return len(s.commands) }

// Index returns the number of applied commands.
func (s *Stack) Index() int { return s.index }

// Command returns the command at position i, or nil.
func (s *Stack) Command(i int) Command {
	if i < 0 || i >= len(s.commands) {
		return nil
	}
	return s.commands[i]
}

// UndoText describes the command Undo would revert.
func (s *Stack) UndoText() string {
	if s.index == 0 {
		return ""
	}
	return s.commands[s.index-1].Text()
}

// RedoText describes the command Redo would reapply.
func (s *Stack) RedoText() string {
	if s.index == len(s.commands) {
		return ""
	}
	return s.commands[s.index].Text()
}

// SetClean marks the current index as the saved state.
func (s *Stack) SetClean() { s.clean = s.index }

// IsClean reports whether the stack sits at the saved state.
func (s *Stack) IsClean() bool { return s.clean == s.index }

func (s *Stack) emit(build func(activity.CommandEventInput) activity.Event, cmd Command, index int) {
	if !s.emitter.Enabled() {
		return
	}
	event := build(activity.CommandEventInput{
		DocumentID: s.documentID,
		CommandID:  cmd.ID(),
		Text:       cmd.Text(),
		Index:      index,
	})
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Str("verb", event.Verb).Msg("undo: activity hook failed")
	}
}
