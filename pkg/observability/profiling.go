package observability

import (
	"os"

	"github.com/grafana/pyroscope-go"

	"transcription-service/pkg/logger"
)

// StartProfiling attaches continuous profiling when a pyroscope server is
// configured. Disabled silently otherwise so dev machines stay quiet.
func StartProfiling(appName, serverAddress string) {
	if serverAddress == "" {
		serverAddress = os.Getenv("PYROSCOPE_SERVER_ADDRESS")
	}
	if serverAddress == "" {
		return
	}

	hostname, _ := os.Hostname()
	_, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("Profiling not started error=%v", err)
		return
	}
	logger.Infof("Profiling started app=%s server=%s", appName, serverAddress)
}
