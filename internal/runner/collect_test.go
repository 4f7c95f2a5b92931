package runner

import "testing"

func TestCollect(t *testing.T) {
	tests := []struct {
		name      string
		in        []Status
		wantOut   string
		wantErr   string
		wantState State
		wantCode  int
	}{
		{
			name: "completed",
			in: []Status{
				running(Stdout, []byte("a\n")),
				running(Stderr, []byte("oops\n")),
				running(Stdout, []byte("b\n")),
				completed(0),
			},
			wantOut:   "a\nb\n",
			wantErr:   "oops\n",
			wantState: StateCompleted,
			wantCode:  0,
		},
		{
			name:      "nonzero exit",
			in:        []Status{completed(2)},
			wantState: StateCompleted,
			wantCode:  2,
		},
		{
			name:      "killed",
			in:        []Status{running(Stdout, []byte("partial")), killed()},
			wantOut:   "partial",
			wantState: StateKilled,
			wantCode:  -1,
		},
		{
			name:      "failed",
			in:        []Status{failed("read stdout: broken")},
			wantState: StateFailed,
			wantCode:  -1,
		},
		{
			name:      "stream ends without outcome",
			in:        []Status{running(Stdout, []byte("x"))},
			wantOut:   "x",
			wantState: StateFailed,
			wantCode:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan Status, len(tt.in))
			for _, st := range tt.in {
				ch <- st
			}
			close(ch)

			res := Collect(ch)
			if string(res.Stdout) != tt.wantOut {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantOut)
			}
			if string(res.Stderr) != tt.wantErr {
				t.Errorf("Stderr = %q, want %q", res.Stderr, tt.wantErr)
			}
			if res.Status.State != tt.wantState {
				t.Errorf("State = %v, want %v", res.Status.State, tt.wantState)
			}
			if res.ExitCode() != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", res.ExitCode(), tt.wantCode)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		st   Status
		want string
	}{
		{running(Stderr, []byte("x\n")), `running(stderr, "x\n")`},
		{completed(3), "completed(3)"},
		{failed("boom"), "failed: boom"},
		{killed(), "killed"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
