// internal/engine/lifecycle/validation.go
package lifecycle

import "firmadoc-engine/internal/common/validation"

func getCreateDocumentSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"recipientEmail", "recipientName", "hash"},
		Properties: map[string]validation.Property{
			"recipientEmail": {
				Type:        "string",
				Description: "Contact used for all lifecycle notifications",
				MinLength:   validation.IntPtr(5),
				MaxLength:   validation.IntPtr(255),
				Pattern:     validation.StrPtr(`^[^@\s]+@[^@\s]+\.[^@\s]+$`),
			},
			"recipientName": {
				Type:        "string",
				Description: "Display name of the client",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(255),
			},
			"hash": {
				Type:        "string",
				Description: "Public document hash used in links and mails",
				MinLength:   validation.IntPtr(8),
				MaxLength:   validation.IntPtr(128),
			},
		},
		AdditionalProperties: false,
	}
}

func getSignDocumentSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"signatureBlob"},
		Properties: map[string]validation.Property{
			"signatureBlob": {
				Type:        "string",
				Description: "Base64-encoded signature image",
				MinLength:   validation.IntPtr(16),
				MaxLength:   validation.IntPtr(2 * 1024 * 1024),
				Pattern:     validation.StrPtr(`^[A-Za-z0-9+/=]+$`),
			},
		},
		AdditionalProperties: false,
	}
}

func getSubmitOTPSchema(otpDigits int) validation.JSONSchema {
	pattern := `^[0-9]+$`
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"code"},
		Properties: map[string]validation.Property{
			"code": {
				Type:        "string",
				Description: "One-time verification code",
				MinLength:   validation.IntPtr(otpDigits),
				MaxLength:   validation.IntPtr(otpDigits),
				Pattern:     &pattern,
			},
		},
		AdditionalProperties: false,
	}
}
