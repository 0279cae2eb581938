package model_test

import (
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/commis-ai/commis/pkg/domain/model"
)

func TestNewInstallPlan_URLDerivation(t *testing.T) {
	plan, err := model.NewInstallPlan(
		"2023.11.14-2", "linux", "x86_64", "en_US-lessac-medium",
		"/data/piper", "/data/voices",
	)

	gt.NoError(t, err)
	gt.Value(t, plan.Archive.URL).Equal(
		"https://github.com/rhasspy/piper/releases/download/2023.11.14-2/piper_linux_x86_64.tar.gz")
	gt.Value(t, plan.VoiceModel.URL).Equal(
		"https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx")
	gt.Value(t, plan.VoiceConfig.URL).Equal(
		"https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx.json")

	gt.Value(t, plan.VoiceModel.Dest).Equal(filepath.Join("/data/voices", "en_US-lessac-medium.onnx"))
	gt.Value(t, plan.VoiceConfig.Dest).Equal(filepath.Join("/data/voices", "en_US-lessac-medium.onnx.json"))
	gt.Value(t, plan.BinaryPath()).Equal(filepath.Join("/data/piper", "piper"))

	gt.Value(t, plan.VoiceModel.MinSize).Equal(model.DefaultMinVoiceModelSize)
	gt.Value(t, plan.VoiceConfig.MinSize).Equal(int64(0))

	// The scratch name only depends on the plan, so re-runs find the same
	// directory and can continue a partial transfer
	gt.Value(t, plan.ScratchDirName()).Equal("commis-install-2023.11.14-2_linux_x86_64")
}

func TestNewInstallPlan_InvalidVoice(t *testing.T) {
	tests := []struct {
		name  string
		voice string
	}{
		{name: "missing quality", voice: "en_US-lessac"},
		{name: "empty", voice: ""},
		{name: "locale without region", voice: "en-lessac-medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.NewInstallPlan(
				"2023.11.14-2", "linux", "x86_64", tt.voice,
				"/data/piper", "/data/voices",
			)
			gt.Error(t, err)
		})
	}
}

func TestInstallTarget_Dirs(t *testing.T) {
	target := model.InstallTarget{BinDir: "/a", ModelDir: "/b"}
	gt.Value(t, target.Dirs()).Equal([]string{"/a", "/b"})
}
