package policy

import _ "embed"

// safetyPolicyYAML is the policy compiled into the binary.
//
//go:embed safety_policy.yaml
var safetyPolicyYAML []byte
