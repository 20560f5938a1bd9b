package shortlink

// DirectReferer is the marker callers use when a request carries no Referer.
const DirectReferer = "direct"

// DefaultLocation is used until geo resolution exists.
const DefaultLocation = "India"

// SourceClassifier derives the traffic source of a click from its referer.
type SourceClassifier func(referer string) Source

// Locator derives the location recorded with a click.
type Locator func(v Visit) string

func ClassifySource(referer string) Source {
	if referer == "" || referer == DirectReferer {
		return SourceDirect
	}
	return SourceReferral
}

func FixedLocation(location string) Locator {
	return func(Visit) string {
		return location
	}
}
