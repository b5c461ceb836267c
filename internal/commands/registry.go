package commands

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds the known commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	validate *validator.Validate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	v := validator.New()
	// The tag is registered on a fresh validator, so this cannot fail.
	_ = v.RegisterValidation("command_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return &Registry{
		commands: make(map[string]Command),
		validate: v,
	}
}

// Register adds a command after validating it.
func (r *Registry) Register(cmd Command) error {
	if err := r.validate.Struct(cmd); err != nil {
		return &CommandError{
			Type:    ErrorValidationFailed,
			Command: cmd.Name,
			Message: "invalid command definition",
			Cause:   err,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return &CommandError{
			Type:    ErrorDuplicateRegistration,
			Command: cmd.Name,
			Message: fmt.Sprintf("command already registered: %s", cmd.Name),
		}
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// MustRegister registers a command and panics on error.
func (r *Registry) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(fmt.Sprintf("failed to register command %s: %v", cmd.Name, err))
	}
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Lookup is Get with a CommandError for unknown names.
func (r *Registry) Lookup(name string) (Command, error) {
	cmd, ok := r.Get(name)
	if !ok {
		return Command{}, &CommandError{
			Type:    ErrorCommandNotFound,
			Command: name,
			Message: fmt.Sprintf("unknown command: %s", name),
		}
	}
	return cmd, nil
}

// List returns every command sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// DecodeArgument unmarshals a command's JSON argument into out.
func DecodeArgument(command, argument string, out any) error {
	if argument == "" {
		return &CommandError{
			Type:    ErrorInvalidArgument,
			Command: command,
			Message: fmt.Sprintf("command %s has no argument", command),
		}
	}
	if err := json.Unmarshal([]byte(argument), out); err != nil {
		return &CommandError{
			Type:    ErrorInvalidArgument,
			Command: command,
			Message: fmt.Sprintf("failed to decode %s argument", command),
			Cause:   err,
		}
	}
	return nil
}
