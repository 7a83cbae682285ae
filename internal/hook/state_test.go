package hook

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"Created to Configured", StateCreated, StateConfigured, false},
		{"Configured to OptionResolved", StateConfigured, StateOptionResolved, false},
		{"OptionResolved to Active", StateOptionResolved, StateActive, false},
		{"Active to Finalized", StateActive, StateFinalized, false},
		{"OptionResolved to Finalized", StateOptionResolved, StateFinalized, false},

		{"Created to Active", StateCreated, StateActive, true},
		{"Active to Configured", StateActive, StateConfigured, true},
		{"Finalized to anything", StateFinalized, StateActive, true},
		{"Configured twice", StateConfigured, StateConfigured, true},
		{"Unknown state", State("bogus"), StateActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%v, %v) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestParseContext(t *testing.T) {
	tests := []struct {
		in   string
		want Context
		err  bool
	}{
		{"remote", ContextExecution, false},
		{"execution", ContextExecution, false},
		{"local", ContextSubmission, false},
		{"allocator", ContextAllocation, false},
		{"slurmd", ContextOther, false},
		{"moon", ContextOther, true},
	}
	for _, tt := range tests {
		got, err := ParseContext(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseContext(%q) = %v, %v", tt.in, got, err)
		}
	}
}
