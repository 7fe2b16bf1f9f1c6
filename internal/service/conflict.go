package service

// VersionDecision classifies a caller's claimed version against the stored one.
type VersionDecision int

const (
	// VersionAccepted means the claimed version matches the stored version.
	VersionAccepted VersionDecision = iota
	// VersionStale means another writer committed first; the caller must
	// resolve against the current record.
	VersionStale
	// VersionAhead means the caller claims a version the store has never
	// issued. Treated as a conflict as well: accepting it would desync the
	// version sequence.
	VersionAhead
)

// CompareVersions is the pure conflict decision. Acceptance requires exact
// equality; a mismatch in either direction is rejected so the version
// sequence stays an unbroken chain of +1 steps.
func CompareVersions(stored, claimed int64) VersionDecision {
	switch {
	case claimed == stored:
		return VersionAccepted
	case claimed < stored:
		return VersionStale
	default:
		return VersionAhead
	}
}
