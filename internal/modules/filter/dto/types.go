package dto

type CheckInput struct {
	Title string
	URL   string
}

type DecisionOutput struct {
	Allowed          bool
	Reason           string
	DetectedLanguage string
}

type PluginInfo struct {
	Name         string
	Version      string
	Enabled      bool
	Binary       string
	Capabilities []string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Error           string
}
