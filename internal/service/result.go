package service

// Result is the outcome of one operation on one service.
type Result int

const (
	ResultOK Result = iota
	ResultIgnore
	ResultErrorAuth
	ResultErrorOther
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultIgnore:
		return "IGNORE"
	case ResultErrorAuth:
		return "ERROR_AUTH"
	case ResultErrorOther:
		return "ERROR_OTHER"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the reduction of the results of every service.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
	OutcomeDeclined
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeDeclined:
		return "Declined"
	default:
		return "Failure"
	}
}

// Results maps a service ID to the result of its call.
type Results map[string]Result

// Any reports whether at least one service returned r.
func (rs Results) Any(r Result) bool {
	for _, v := range rs {
		if v == r {
			return true
		}
	}
	return false
}

// All reports whether every service returned r. It is false for an empty set.
func (rs Results) All(r Result) bool {
	if len(rs) == 0 {
		return false
	}
	for _, v := range rs {
		if v != r {
			return false
		}
	}
	return true
}

// Outcome reduces the results: any OK is a success, all IGNORE is declined,
// anything else is a failure.
func (rs Results) Outcome() Outcome {
	switch {
	case rs.Any(ResultOK):
		return OutcomeSuccess
	case rs.All(ResultIgnore):
		return OutcomeDeclined
	default:
		return OutcomeFailure
	}
}
