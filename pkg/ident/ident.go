// Package ident composes stable identifiers for catalog entities.
//
// Identifiers are plain concatenations of parent identifiers and local
// discriminators. The same inputs always give byte-identical output, which
// keeps primary-key upserts idempotent across runs.
package ident

import (
	"strings"

	"github.com/gnames/gnuuid"
)

// Sep separates identifier parts.
const Sep = "_"

// OfferingID returns course_id + "_" + offer_number.
func OfferingID(courseID, offerNumber string) string {
	return courseID + Sep + offerNumber
}

// ClassID returns offering_id + "_" + term_code.
func ClassID(offeringID, termCode string) string {
	return offeringID + Sep + termCode
}

// MeetingID returns a UUID v5 for a meeting pattern of a class section.
// Meeting patterns have no natural key, the UUID is derived from the
// parent class and the pattern's content.
func MeetingID(classID, section, location, schedule string) string {
	return uuid(classID, section, location, schedule)
}

// InstructorID returns a UUID v5 for an instructor assignment.
func InstructorID(classID, section, displayName string) string {
	return uuid(classID, section, displayName)
}

func uuid(parts ...string) string {
	return gnuuid.New(strings.Join(parts, "|")).String()
}
