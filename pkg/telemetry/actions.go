package telemetry

type ActionCategory int

const (
	Fuzzing ActionCategory = iota
	Building
	Reporting
)

func (a ActionCategory) String() string {
	switch a {
	case Fuzzing:
		return "fuzzing"
	case Building:
		return "building"
	case Reporting:
		return "reporting"
	default:
		return "unknown"
	}
}
