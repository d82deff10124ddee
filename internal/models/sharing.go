package models

// SharingDestination is a visibility scope for uploaded content.
type SharingDestination string

const (
	DestinationCommunity    SharingDestination = "community"
	DestinationPrivate      SharingDestination = "private"
	DestinationOrganization SharingDestination = "organization"
	DestinationTeam         SharingDestination = "team"
)

// ValidDestinations is the set of all valid sharing destinations.
var ValidDestinations = []SharingDestination{
	DestinationCommunity,
	DestinationPrivate,
	DestinationOrganization,
	DestinationTeam,
}

// IsValid returns true if the destination is recognized.
func (d SharingDestination) IsValid() bool {
	for _, v := range ValidDestinations {
		if d == v {
			return true
		}
	}
	return false
}
