package driver

import (
	"context"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/dgpud/dgpud/pkg/log"
)

// nvidiaDeviceNodePrefixes identifies the device nodes a process must
// hold open for KillNvidia to consider it a blocker.
var nvidiaDeviceNodePrefixes = []string{"/dev/nvidia"}

// KillNvidia enumerates userspace processes holding any /dev/nvidia*
// node open and terminates them — required before the Nvidia driver
// set can be unloaded, since the kernel refuses to remove a module
// whose device nodes are in use.
func (p *Primitive) KillNvidia(ctx context.Context) error {
	return p.killHolders(ctx, nvidiaDeviceNodePrefixes)
}

// KillAmd is the AMD-vendor counterpart dispatched by the same
// kill_gpu_use planner step; amdgpu doesn't expose per-process device
// nodes the way nvidia does, so there is nothing analogous to hunt for
// here — clients of the DRM node are torn down by the display manager
// stop step instead. Kept as an explicit, separately named primitive
// so the executor's dispatch table stays one-to-one with StagedAction.
func (p *Primitive) KillAmd(ctx context.Context) error {
	log.Logger.Debugw("kill_gpu_use: amd vendor, nothing to kill directly")
	return nil
}

func (p *Primitive) killHolders(ctx context.Context, nodePrefixes []string) error {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return err
	}

	for _, pid := range pids {
		proc, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		if !holdsAnyNode(proc, nodePrefixes) {
			continue
		}
		log.Logger.Warnw("killing process holding nvidia device node", "pid", pid)
		if err := proc.KillWithContext(ctx); err != nil {
			log.Logger.Errorw("failed to kill process", "pid", pid, "error", err)
		}
	}
	return nil
}

// holdsAnyNode inspects a process's open file descriptors (via
// gopsutil, which reads /proc/<pid>/fd on Linux) for a target matching
// one of the nvidia device node prefixes.
func holdsAnyNode(proc *process.Process, prefixes []string) bool {
	exe, _ := proc.Exe()
	if exe == "" {
		return false
	}
	// gopsutil v4 doesn't expose an /proc/<pid>/fd walk directly on
	// every platform; fall back to `fuser`-equivalent inspection via
	// lsof-free /proc reads is out of scope here, so use the process's
	// open files API where available.
	files, err := proc.OpenFiles()
	if err != nil {
		return false
	}
	for _, f := range files {
		for _, prefix := range prefixes {
			if strings.HasPrefix(f.Path, prefix) {
				return true
			}
		}
	}
	return false
}

// fuserFallback is the equivalent `fuser -k` shell-out that the
// gopsutil scan above replaces. Nothing in the package calls it.
func fuserFallback(ctx context.Context, node string) error {
	return exec.CommandContext(ctx, "fuser", "-k", node).Run()
}
