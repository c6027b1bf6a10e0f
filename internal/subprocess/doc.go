// Package subprocess starts guest processes for websocket launch requests.
//
// A Supervisor resolves a launch command once, then starts one process per
// wsbridge.LaunchRequest with the encoded request in the $SITEOS_LAUNCH
// environment variable. Output from every process is forwarded line by line to
// the logger and to an optional callback, and the head of stderr is kept so an
// unexpected exit can be reported as a ProcessError.
//
//	sup, err := subprocess.New("siteos-relay", []string{"guest"}, subprocess.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer sup.Close()
//
//	host, err := wsbridge.NewHost(hostURL, sup.Launch)
//
// Close kills every process that is still running. Exits caused by Close are
// not reported as errors.
package subprocess
