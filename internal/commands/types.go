package commands

// TopicPrefix is prepended to a command name to form its bus topic.
const TopicPrefix = "vrpanel.socket."

// UnknownTopic receives frames whose command is not registered.
const UnknownTopic = TopicPrefix + "unknown"

// Command describes one socket command.
type Command struct {
	Name        string `json:"name" validate:"required,max=64,command_name"`
	Description string `json:"description" validate:"required"`
	Example     string `json:"example" validate:"required"`
	// Payload names the Go type of the argument, empty when the command has none.
	Payload string `json:"payload,omitempty"`
}

// Topic returns the bus topic frames of this command are relayed on.
func (c Command) Topic() string {
	return TopicPrefix + c.Name
}

// HasArgument reports whether the command carries an argument.
func (c Command) HasArgument() bool {
	return c.Payload != ""
}

// TopicFor maps any command name to a topic, falling back to UnknownTopic for
// names that could not be registered.
func TopicFor(name string) string {
	if !namePattern.MatchString(name) {
		return UnknownTopic
	}
	return TopicPrefix + name
}

// CommandError represents structured errors from the registry.
type CommandError struct {
	Type    ErrorType `json:"type"`
	Command string    `json:"command"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

// ErrorType defines the kind of registry error.
type ErrorType string

const (
	ErrorCommandNotFound       ErrorType = "command_not_found"
	ErrorDuplicateRegistration ErrorType = "duplicate_registration"
	ErrorValidationFailed      ErrorType = "validation_failed"
	ErrorInvalidArgument       ErrorType = "invalid_argument"
)

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}
