package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List apps and their deployment state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			deps := eng.Deployments()
			sort.Slice(deps, func(i, j int) bool { return deps[i].App < deps[j].App })

			fmt.Printf("%-20s %-10s %-14s %-36s %-6s %-9s %s\n",
				"APP", "PHASE", "CONTAINER", "IMAGE", "PORT", "SIZE", "STATUS")
			for _, d := range deps {
				port := "-"
				if d.HostPort != 0 {
					port = strconv.Itoa(d.HostPort)
				}
				size := "-"
				if d.ImageRef != "" {
					if img, err := eng.InspectImage(ctx, d.ImageRef); err == nil {
						size = units.HumanSize(float64(img.Size))
					}
				}
				fmt.Printf("%-20s %-10s %-14s %-36s %-6s %-9s %s\n",
					d.App, d.Phase, orDash(shortID(d.ContainerID)), orDash(d.ImageRef), port, size, statusLine(d))
			}
			return nil
		})
	},
}

// statusLine renders a docker-ps style status for a deployment record.
func statusLine(d domain.Deployment) string {
	switch d.Phase {
	case domain.PhaseRunning:
		if d.StartedAt.IsZero() {
			return "Up"
		}
		return "Up " + units.HumanDuration(time.Since(d.StartedAt))
	case domain.PhaseStopped, domain.PhaseCrashed:
		if d.FinishedAt.IsZero() {
			return fmt.Sprintf("Exited (%d)", d.ExitCode)
		}
		return fmt.Sprintf("Exited (%d) %s ago", d.ExitCode, units.HumanDuration(time.Since(d.FinishedAt)))
	case domain.PhaseBuilt:
		if d.BuiltAt.IsZero() {
			return "Built"
		}
		return "Built " + units.HumanDuration(time.Since(d.BuiltAt)) + " ago"
	case domain.PhaseBuilding:
		return "Building"
	default:
		return "Not built"
	}
}

// shortID truncates a container or image ID for display.
func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
