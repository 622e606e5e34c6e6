package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigmergic-labs/sbp/pkg/config"
)

var _ = Describe("config directory resolution", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "sbp-config-dir-test-*")
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("creates the override directory if it doesn't exist", func() {
		dir := filepath.Join(tmpDir, "newdir")
		c, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		info, err := os.Stat(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(c.GetTarget()).To(Equal(filepath.Join(dir, "config.toml")))
	})

	It("prefers the override dir even when a local .sbp dir exists", func() {
		localSBP := filepath.Join(tmpDir, ".sbp")
		Expect(os.Mkdir(localSBP, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		overrideDir := filepath.Join(tmpDir, "override")
		c, err := config.NewConfiger(overrideDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.GetTarget()).To(Equal(filepath.Join(overrideDir, "config.toml")))
	})

	It("uses the local .sbp dir when it exists and no override is given", func() {
		localSBP := filepath.Join(tmpDir, ".sbp")
		Expect(os.Mkdir(localSBP, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		c, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.GetTarget()).To(Equal(filepath.Join(localSBP, "config.toml")))
	})

	It("falls back to SBP_CONFIG_DIR when no local dir exists", func() {
		emptyDir := filepath.Join(tmpDir, "empty")
		Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

		envDir := filepath.Join(tmpDir, "env-config")
		Expect(os.Mkdir(envDir, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(emptyDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		origEnv, hadEnv := os.LookupEnv("SBP_CONFIG_DIR")
		Expect(os.Setenv("SBP_CONFIG_DIR", envDir)).To(Succeed())
		DeferCleanup(func() {
			if hadEnv {
				os.Setenv("SBP_CONFIG_DIR", origEnv)
			} else {
				os.Unsetenv("SBP_CONFIG_DIR")
			}
		})

		c, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.GetTarget()).To(Equal(filepath.Join(envDir, "config.toml")))
	})

	It("falls back to XDG_CONFIG_HOME/sbp when set and no local or env dir exists", func() {
		emptyDir := filepath.Join(tmpDir, "empty")
		Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

		xdgBase := filepath.Join(tmpDir, "xdg")
		xdgSBP := filepath.Join(xdgBase, "sbp")
		Expect(os.MkdirAll(xdgSBP, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(emptyDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		origXDG, hadXDG := os.LookupEnv("XDG_CONFIG_HOME")
		Expect(os.Setenv("XDG_CONFIG_HOME", xdgBase)).To(Succeed())
		DeferCleanup(func() {
			if hadXDG {
				os.Setenv("XDG_CONFIG_HOME", origXDG)
			} else {
				os.Unsetenv("XDG_CONFIG_HOME")
			}
		})

		c, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.GetTarget()).To(Equal(filepath.Join(xdgSBP, "config.toml")))
	})

	It("falls back to the home .sbp dir when nothing else resolves", func() {
		emptyDir := filepath.Join(tmpDir, "empty")
		Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(emptyDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		origHome := os.Getenv("HOME")
		Expect(os.Setenv("HOME", emptyDir)).To(Succeed())
		DeferCleanup(func() { os.Setenv("HOME", origHome) })

		origEnv, hadEnv := os.LookupEnv("SBP_CONFIG_DIR")
		Expect(os.Unsetenv("SBP_CONFIG_DIR")).To(Succeed())
		DeferCleanup(func() {
			if hadEnv {
				os.Setenv("SBP_CONFIG_DIR", origEnv)
			}
		})
		origXDG, hadXDG := os.LookupEnv("XDG_CONFIG_HOME")
		Expect(os.Unsetenv("XDG_CONFIG_HOME")).To(Succeed())
		DeferCleanup(func() {
			if hadXDG {
				os.Setenv("XDG_CONFIG_HOME", origXDG)
			}
		})

		c, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.GetTarget()).To(Equal(filepath.Join(emptyDir, ".sbp", "config.toml")))
	})
})
