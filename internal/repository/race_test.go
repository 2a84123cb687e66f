//go:build race

package repository

// boltdb/bolt trips checkptr under the race detector
const raceEnabled = true
