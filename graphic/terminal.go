package graphic

import (
	"os"
	"strings"
)

// normalizeTerminal works around terminal settings tcell trips over.
//
// Returns a function that restores the environment to its original state.
func normalizeTerminal() (func(), error) {
	prevTERMINFO, had := os.LookupEnv("TERMINFO")

	if strings.HasPrefix(os.Getenv("TERM"), "tmux") {
		// Some combinations of TERMINFO with TERM in some Tmux value
		// will make the terminfo lookup fail.
		if err := os.Unsetenv("TERMINFO"); err != nil {
			return nil, err
		}
	}

	restore := func() {
		if had {
			os.Setenv("TERMINFO", prevTERMINFO)
		}
	}

	return restore, nil
}
