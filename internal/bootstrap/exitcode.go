package bootstrap

// Bootstrap-phase failures exit in a reserved range so operators can tell
// "the service never launched" apart from "the service crashed". The values
// sit in the BSD sysexits neighborhood (EX_OSERR, EX_OSFILE), away from
// conventional application exit codes and from the shell's 126/127 range.
// A service exit code passes through verbatim and is never remapped.
const (
	// ExitEnvironment means the working-directory root was absent
	ExitEnvironment = 71

	// ExitLaunch means the service entry point could not be executed
	ExitLaunch = 72
)
