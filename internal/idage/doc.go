// Package idage estimates account age from numeric user ids.
//
// Platform user ids are issued monotonically, so an id maps to a rough
// creation date. The estimator interpolates linearly between known
// (id, date) anchor points and clamps outside the table; it never
// extrapolates past the last anchor, which under-estimates the age of very
// new accounts until the table is extended. Operators can replace the
// built-in table with a TOML anchors file.
package idage
