// Package plugin holds the static description of the heartbeat app: its
// banner, man page and the metadata record printed by --meta.
package plugin

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/FNNDSC/pl-heartbeat/internal/models"
)

const Title = `
 _                     _   _                _
| |                   | | | |              | |
| |__   ___  __ _ _ __| |_| |__   ___  __ _| |_
| '_ \ / _ \/ _` + "`" + ` | '__| __| '_ \ / _ \/ _` + "`" + ` | __|
| | | |  __/ (_| | |  | |_| |_) |  __/ (_| | |_
|_| |_|\___|\__,_|_|   \__|_.__/ \___|\__,_|\__|
`

const Synopsis = `
    NAME

        heartbeat

    SYNOPSIS

        heartbeat                                                       \
            [-v <level>] [--verbosity <level>]                          \
            [--version]                                                 \
            [--man]                                                     \
            [--meta]                                                    \
            [--config <path>]                                           \
            [--dump-config <path>]                                      \
            [--log-level <level>]                                       \
            [--quiet]                                                   \
            [--infoType <typeSystemInfo>]                               \
            [--beatInterval <secondsWait>]                              \
            [--lifetime <secondsLive>]                                  \
            [<inputdir>] [<outputdir>]

    BRIEF EXAMPLE

        * To display CPU usage every 5 seconds for 50 seconds:
            heartbeat --infoType CPU --beatInterval 5 --lifetime 50 /tmp

    DESCRIPTION

        heartbeat prints one line of system information every few
        seconds and exits on its own once its lifetime is over.

    ARGS

        [-v <level>] [--verbosity <level>]
        Verbosity level. 2 or more enables debug logging.

        [--version]
        If specified, print version number.

        [--man]
        If specified, print (this) man page.

        [--meta]
        If specified, print plugin meta data as JSON.

        [--config <path>]
        YAML configuration file. Flags override its values.

        [--dump-config <path>]
        Write the resolved configuration as YAML to <path> and exit.

        [--log-level <level>]
        One of debug, info, warn, error. Logs go to stderr.

        [--quiet]
        Do not print the title banner and version before beating.

        [--infoType <typeSystemInfo>]
        Type of system information to return: CPU, MEMORY or DATETIME.

        [--beatInterval <secondsWait>]
        Time period to wait between outputting system information.

        [--lifetime <secondsLive>]
        Time to wait until terminating itself.
`

// Meta describes the app to a plugin registry.
type Meta struct {
	Title          string   `json:"title"`
	Version        string   `json:"version"`
	Description    string   `json:"description"`
	Authors        string   `json:"authors"`
	License        string   `json:"license"`
	Documentation  string   `json:"documentation"`
	Category       string   `json:"category"`
	Type           string   `json:"type"`
	InfoTypes      []string `json:"info_types"`
	MinWorkers     int      `json:"min_number_of_workers"`
	MaxWorkers     int      `json:"max_number_of_workers"`
	MinCPULimit    string   `json:"min_cpu_limit"`
	MaxCPULimit    string   `json:"max_cpu_limit"`
	MinMemoryLimit string   `json:"min_memory_limit"`
	MaxMemoryLimit string   `json:"max_memory_limit"`
	MinGPULimit    int      `json:"min_gpu_limit"`
	MaxGPULimit    int      `json:"max_gpu_limit"`
	Platform       Platform `json:"platform"`
}

// Platform identifies the host the app runs on.
type Platform struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
}

// NewMeta returns the metadata record for version.
func NewMeta(version string) Meta {
	types := models.InfoTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return Meta{
		Title:         "Periodic Output Generator App",
		Version:       version,
		Description:   "Outputs system information periodically",
		Authors:       "FNNDSC (dev@babyMRI.org)",
		License:       "Opensource (MIT)",
		Documentation: "https://github.com/FNNDSC/pl-heartbeat",
		Type:          "fs",
		InfoTypes:     names,
		MinWorkers:    1,
		MaxWorkers:    1,
		Platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}
}

// DetectPlatform fills in host details. Failures leave them empty.
func (m *Meta) DetectPlatform(ctx context.Context) error {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return fmt.Errorf("reading host info: %w", err)
	}
	m.Platform.Platform = info.Platform
	m.Platform.PlatformVersion = info.PlatformVersion
	m.Platform.KernelVersion = info.KernelVersion
	return nil
}

// WriteJSON writes m as indented JSON.
func (m Meta) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// WriteBanner prints the title and version the way the app greets its output.
func WriteBanner(w io.Writer, version string) error {
	_, err := fmt.Fprintf(w, "%s\nVersion: %s\n\n", Title, version)
	return err
}
