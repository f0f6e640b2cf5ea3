// Package captcha generates arithmetic verification challenges with decoy
// answers and checks submitted answers against the expected one.
package captcha
