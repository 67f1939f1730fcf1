package flows

type SubmissionState int

const (
	Idle SubmissionState = iota
	Submitting
	Succeeded
	Failed
)

func (s SubmissionState) String() string {
	return [...]string{"idle", "submitting", "succeeded", "failed"}[s]
}

// submission accepts a submit only from Idle or Failed.
type submission struct {
	state SubmissionState
}

func (s *submission) begin() error {
	switch s.state {
	case Idle, Failed:
		s.state = Submitting
		return nil
	case Submitting:
		return ErrSubmitInFlight
	default:
		return ErrAlreadySubmitted
	}
}

func (s *submission) finish(err error) {
	if err != nil {
		s.state = Failed
	} else {
		s.state = Succeeded
	}
}

// reset returns to Idle unless a submit is in flight.
func (s *submission) reset() bool {
	if s.state == Submitting {
		return false
	}
	s.state = Idle
	return true
}
