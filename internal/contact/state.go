package contact

// Status is where a form interaction is in its submission lifecycle.
type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State is everything the form view renders from.
type State struct {
	Fields Submission
	Errors FieldErrors
	Status Status

	// Reference identifies the latest submission attempt in logs.
	Reference string
}

// NewState returns the state of a freshly mounted form.
func NewState() State {
	return State{Errors: FieldErrors{}}
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// FieldChanged records user input into one field.
type FieldChanged struct {
	Field string
	Value string
}

// SubmitRequested is a user-initiated submit. Reference tags the attempt
// when it goes out to the relay.
type SubmitRequested struct {
	Reference string
}

// SubmitSucceeded reports that the relay accepted the payload.
type SubmitSucceeded struct{}

// SubmitFailed reports that the relay call failed.
type SubmitFailed struct {
	Err error
}

func (FieldChanged) event()    {}
func (SubmitRequested) event() {}
func (SubmitSucceeded) event() {}
func (SubmitFailed) event()    {}

// Reduce returns the state that follows st after ev. It never mutates st.
//
// SubmitRequested with invalid fields only records the errors; with
// valid fields it moves to StatusSubmitting. Relay outcomes are ignored
// unless a submission is in flight.
func Reduce(st State, ev Event) State {
	next := State{
		Fields:    st.Fields,
		Errors:    st.Errors.Clone(),
		Status:    st.Status,
		Reference: st.Reference,
	}

	switch e := ev.(type) {
	case FieldChanged:
		f, err := next.Fields.With(e.Field, e.Value)
		if err != nil {
			return next
		}
		next.Fields = f
		delete(next.Errors, e.Field)

	case SubmitRequested:
		if st.Status == StatusSubmitting {
			return next
		}
		if errs := Validate(next.Fields); len(errs) > 0 {
			next.Errors = errs
			return next
		}
		next.Errors = FieldErrors{}
		next.Status = StatusSubmitting
		next.Reference = e.Reference

	case SubmitSucceeded:
		if st.Status != StatusSubmitting {
			return next
		}
		next.Status = StatusSuccess
		next.Fields = Submission{}
		next.Errors = FieldErrors{}

	case SubmitFailed:
		if st.Status != StatusSubmitting {
			return next
		}
		next.Status = StatusError
	}

	return next
}
