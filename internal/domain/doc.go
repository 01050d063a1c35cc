// Package domain models litter reports and the geographic values attached to them.
//
// # Reports
//
// A report is created from an encoded image and a coordinate. Both must be
// present; the description defaults to "No description provided" when blank.
// Status moves freely between the three cleanup states:
//
//	reported → in-progress → resolved
//
// Reports form a newest-first sequence ordered by insertion. A status change
// never reorders the sequence.
//
// # Coordinates
//
// Coordinates are WGS-84 degrees with an accuracy radius in metres and a
// source tag:
//
//	device    browser/device geolocation fix
//	gps-exif  GPS tags embedded in the photo (legacy value "gps")
//	ip        IP-based approximation, accuracy fixed at 50 km
//	manual    typed in by the user
//
// EXIF stores latitude and longitude as degrees/minutes/seconds plus a
// hemisphere reference; see [DMSToDecimal].
//
// # Distance
//
// [DistanceKm] is the Haversine great-circle distance on a sphere of radius
// 6371 km. It is symmetric and returns 0 for identical points.
//
// # ID Generation
//
// Report IDs are the creation time in Unix milliseconds rendered as a decimal
// string, read from the package clock (see [SetClock]). Callers that need
// uniqueness across a burst of submissions bump the value until it is free.
package domain
