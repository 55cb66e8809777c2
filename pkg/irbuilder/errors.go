package irbuilder

import "fmt"

func errUnknownLocal(name string) error {
	return fmt.Errorf("irbuilder: undeclared local %q", name)
}
