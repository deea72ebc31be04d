package protocol

// ValidateTubeName checks name against the beanstalkd tube name grammar:
// 1 to 200 bytes of letters, digits and "-+/;.$_()", not starting with "-".
func ValidateTubeName(name string) error {
	if len(name) == 0 {
		return &InvalidCommandError{Message: "tube name is empty"}
	}

	if len(name) > MaxTubeNameLength {
		return &InvalidCommandError{Message: "tube name exceeds maximum length of 200 bytes"}
	}

	if name[0] == '-' {
		return &InvalidCommandError{Message: "tube name starts with a hyphen: " + name}
	}

	for i := 0; i < len(name); i++ {
		if !isTubeNameByte(name[i]) {
			return &InvalidCommandError{Message: "tube name contains an invalid character: " + name}
		}
	}

	return nil
}

func isTubeNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '+', '/', ';', '.', '$', '_', '(', ')':
		return true
	}
	return false
}
