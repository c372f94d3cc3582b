package models

type VersionChangeType int

const (
	VersionChangeNone VersionChangeType = iota
	VersionChangePatch
	VersionChangeMinor
	VersionChangeMajor
)

func (v VersionChangeType) String() string {
	switch v {
	case VersionChangePatch:
		return "Patch"
	case VersionChangeMinor:
		return "Minor"
	case VersionChangeMajor:
		return "Major"
	default:
		return "None"
	}
}

func (v VersionChangeType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
