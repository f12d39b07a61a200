package shared

import "fmt"

// TripNamingLockKey builds the redis key serializing trip creation within a scope.
func TripNamingLockKey(scope string) string {
	return fmt.Sprintf("delivery:trips:%s:naming", scope)
}
