package v1

import "sigs.k8s.io/yaml"

// StagedAction is one step of a Plan. The alphabet is fixed; the
// executor dispatches on it with a single exhaustive switch rather
// than per-step objects, which keeps a Plan trivially serialisable
// for logging, replay, and testing.
type StagedAction string

const (
	WaitLogout                StagedAction = "WaitLogout"
	StopDisplayManager        StagedAction = "StopDisplayManager"
	StartDisplayManager       StagedAction = "StartDisplayManager"
	NoLogind                  StagedAction = "NoLogind"
	SendDetachEvent           StagedAction = "SendDetachEvent"
	LoadGpuDrivers            StagedAction = "LoadGpuDrivers"
	UnloadGpuDrivers          StagedAction = "UnloadGpuDrivers"
	KillNvidia                StagedAction = "KillNvidia"
	KillAmd                   StagedAction = "KillAmd"
	EnableNvidiaPersistenced  StagedAction = "EnableNvidiaPersistenced"
	DisableNvidiaPersistenced StagedAction = "DisableNvidiaPersistenced"
	EnableNvidiaPowerd        StagedAction = "EnableNvidiaPowerd"
	DisableNvidiaPowerd       StagedAction = "DisableNvidiaPowerd"
	LoadVfioDrivers           StagedAction = "LoadVfioDrivers"
	UnloadVfioDrivers         StagedAction = "UnloadVfioDrivers"
	DevTreeManaged            StagedAction = "DevTreeManaged"
	RescanPci                 StagedAction = "RescanPci"
	UnbindRemoveGpu           StagedAction = "UnbindRemoveGpu"
	UnbindGpu                 StagedAction = "UnbindGpu"
	HotplugUnplug             StagedAction = "HotplugUnplug"
	HotplugPlug               StagedAction = "HotplugPlug"
	AsusDgpuDisable           StagedAction = "AsusDgpuDisable"
	AsusDgpuEnable            StagedAction = "AsusDgpuEnable"
	AsusEgpuDisable           StagedAction = "AsusEgpuDisable"
	AsusEgpuEnable            StagedAction = "AsusEgpuEnable"
	AsusMuxIgpu               StagedAction = "AsusMuxIgpu"
	AsusMuxDgpuStep           StagedAction = "AsusMuxDgpu"
	WriteModprobeConf         StagedAction = "WriteModprobeConf"
	CheckVulkanIcd            StagedAction = "CheckVulkanIcd"
	NotNvidia                 StagedAction = "NotNvidia"
	NoneStep                  StagedAction = "None"
)

// Plan is the output of the Action Planner: either a verdict that the
// transition needs a human, or a non-empty ordered list of steps.
// Exactly one of UserAction / Steps is set.
type Plan struct {
	UserAction UserActionRequired `json:"user_action,omitempty"`
	Steps      []StagedAction     `json:"steps,omitempty"`
}

// IsUserAction reports whether this Plan is a verdict rather than a
// sequence of executable steps.
func (p Plan) IsUserAction() bool {
	return p.UserAction != "" && len(p.Steps) == 0
}

func UserActionPlan(a UserActionRequired) Plan {
	return Plan{UserAction: a}
}

func StepsPlan(steps ...StagedAction) Plan {
	return Plan{Steps: steps}
}

// String renders the plan as YAML for log lines and CLI debug output.
func (p Plan) String() string {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
