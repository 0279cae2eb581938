package model

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const (
	archiveURLFormat = "https://github.com/rhasspy/piper/releases/download/%s/piper_%s_%s.tar.gz"
	voiceURLFormat   = "https://huggingface.co/rhasspy/piper-voices/resolve/main/%s/%s/%s/%s/%s"

	// ArchivePayloadDir is the top-level directory inside the release
	// archive that holds the binary and its shared libraries
	ArchivePayloadDir = "piper"

	// BinaryName is the executable shipped in the payload directory
	BinaryName = "piper"

	// DefaultMinVoiceModelSize is the sanity floor for a downloaded voice
	// model. Voice weights are tens of megabytes; anything below this is a
	// truncated or bogus download.
	DefaultMinVoiceModelSize int64 = 10 * 1024 * 1024
)

// InstallTarget holds the destination directories for an install run
type InstallTarget struct {
	BinDir   string // Directory receiving the binary archive payload
	ModelDir string // Directory receiving voice model files
}

// Dirs returns the directories to provision, in creation order
func (t InstallTarget) Dirs() []string {
	return []string{t.BinDir, t.ModelDir}
}

// RemoteArtifact is a single downloadable file with a fixed destination
type RemoteArtifact struct {
	URL     string
	Dest    string
	MinSize int64 // Minimum acceptable size in bytes, 0 means unchecked
}

// ArchiveArtifact is a downloadable archive whose payload directory is
// installed rather than the archive file itself
type ArchiveArtifact struct {
	URL        string
	Filename   string // Scratch file name for the download
	PayloadDir string // Expected top-level directory inside the archive
}

// InstallPlan is the full set of artifacts and destinations for one run.
// It is built once from static configuration and never mutated.
type InstallPlan struct {
	Version     string
	OS          string
	Arch        string
	Voice       string
	Target      InstallTarget
	Archive     ArchiveArtifact
	VoiceModel  RemoteArtifact
	VoiceConfig RemoteArtifact
}

// BinaryPath is where the installed executable ends up
func (p *InstallPlan) BinaryPath() string {
	return filepath.Join(p.Target.BinDir, BinaryName)
}

// ScratchDirName names the scratch directory for this plan. The name is
// stable across runs so a partial archive transfer left behind by an
// interrupted run is found and continued by the next one.
func (p *InstallPlan) ScratchDirName() string {
	return fmt.Sprintf("commis-install-%s_%s_%s", p.Version, p.OS, p.Arch)
}

// NewInstallPlan resolves the artifact URLs for a piper release and voice.
// Voice names follow the piper-voices convention <locale>-<name>-<quality>,
// e.g. "en_US-lessac-medium", which also encodes the repository path of the
// model files.
func NewInstallPlan(version, osName, arch, voice, binDir, modelDir string) (*InstallPlan, error) {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) != 3 {
		return nil, goerr.New("invalid voice name, expected <locale>-<name>-<quality>",
			goerr.V("voice", voice))
	}
	locale, name, quality := parts[0], parts[1], parts[2]

	lang, _, ok := strings.Cut(locale, "_")
	if !ok {
		return nil, goerr.New("invalid voice locale, expected <lang>_<REGION>",
			goerr.V("voice", voice))
	}

	archiveName := fmt.Sprintf("piper_%s_%s.tar.gz", osName, arch)

	return &InstallPlan{
		Version: version,
		OS:      osName,
		Arch:    arch,
		Voice:   voice,
		Target: InstallTarget{
			BinDir:   binDir,
			ModelDir: modelDir,
		},
		Archive: ArchiveArtifact{
			URL:        fmt.Sprintf(archiveURLFormat, version, osName, arch),
			Filename:   archiveName,
			PayloadDir: ArchivePayloadDir,
		},
		VoiceModel: RemoteArtifact{
			URL:     fmt.Sprintf(voiceURLFormat, lang, locale, name, quality, voice+".onnx"),
			Dest:    filepath.Join(modelDir, voice+".onnx"),
			MinSize: DefaultMinVoiceModelSize,
		},
		VoiceConfig: RemoteArtifact{
			URL:  fmt.Sprintf(voiceURLFormat, lang, locale, name, quality, voice+".onnx.json"),
			Dest: filepath.Join(modelDir, voice+".onnx.json"),
		},
	}, nil
}

// FetchResult describes the outcome of a single artifact download
type FetchResult struct {
	Path        string // Destination path of the completed file
	Bytes       int64  // Bytes transferred in this attempt
	Resumed     bool   // Whether a previous partial transfer was continued
	ResumedFrom int64  // Byte offset the transfer continued from
	Skipped     bool   // Destination already existed, nothing transferred
}

// InstallReport summarizes a completed install run
type InstallReport struct {
	RunID           string
	BinaryPath      string
	InstalledFiles  []string
	ModelPath       string
	ModelConfigPath string
	ModelSize       int64
	ProbeOK         bool
	ProbeOutput     string // Version string reported by the binary
}
