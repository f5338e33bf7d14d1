// Package sanitizer normalizes user-supplied strings before they are
// validated, stored, or interpolated into notification text.
//
// All functions are idempotent: applying them twice gives the same result.
package sanitizer
