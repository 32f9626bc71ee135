package contract

import (
	"fmt"
	"regexp"
)

var (
	protocolNameRegex = regexp.MustCompile("^[a-zA-Z_]{1}[0-9a-zA-Z_.]+[0-9a-zA-Z_]$")
	functionNameRegex = regexp.MustCompile("^[a-zA-Z_][0-9a-zA-Z_]*$")
)

const (
	protocolNameMaxSize = 64
	protocolNameMinSize = 3
)

// ValidProtocolName return error when name is not a valid protocol name.
func ValidProtocolName(name string) error {
	size := len(name)
	if size > protocolNameMaxSize || size < protocolNameMinSize {
		return fmt.Errorf("protocol name length expect [%d~%d], actual: %d", protocolNameMinSize, protocolNameMaxSize, size)
	}
	if !protocolNameRegex.MatchString(name) {
		return fmt.Errorf("protocol name does not fit the rule of protocol name")
	}
	return nil
}

// ValidFunctionName return error when name can not be used as a function name.
func ValidFunctionName(name string) error {
	if !functionNameRegex.MatchString(name) {
		return fmt.Errorf("function name %q does not fit the rule of function name", name)
	}
	return nil
}
