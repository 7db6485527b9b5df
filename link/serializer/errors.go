package serializer

import "fmt"

func errUnknownSerializer(name string) error {
	return fmt.Errorf("invalid serializer %s (expected one of: json, text)", name)
}
