package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("creates a manager with an override directory", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr).NotTo(BeNil())
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds).NotTo(BeNil())
			Expect(creds.Profiles).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[profiles.default]
token = "tok-test"
user_id = "user_123"
`
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Profiles).To(HaveKey("default"))
			Expect(creds.Profiles["default"].Token).To(Equal("tok-test"))
			Expect(creds.Profiles["default"].UserID).To(Equal("user_123"))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte("not valid [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists credentials to disk with restricted permissions", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds := &credentials.Credentials{
				Profiles: map[string]credentials.Profile{
					"default": {Token: "tok"},
				},
			}
			err = mgr.Save(creds)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(filepath.Join(tmpDir, "credentials.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = mgr.Save(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetProfile", func() {
		It("stores a new profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = mgr.SetProfile("work", credentials.Profile{Token: "tok-work", UserID: "u-work"})
			Expect(err).NotTo(HaveOccurred())

			p, ok, err := mgr.GetProfile("work")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(p.Token).To(Equal("tok-work"))
			Expect(p.UserID).To(Equal("u-work"))
		})

		It("uses the default profile for an empty name", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("", credentials.Profile{Token: "tok"})).To(Succeed())

			p, ok, err := mgr.GetProfile(credentials.DefaultProfile)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(p.Token).To(Equal("tok"))
		})

		It("preserves other profiles", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("a", credentials.Profile{Token: "tok-a"})).To(Succeed())
			Expect(mgr.SetProfile("b", credentials.Profile{Token: "tok-b"})).To(Succeed())

			p, _, err := mgr.GetProfile("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Token).To(Equal("tok-a"))
		})
	})

	Describe("GetProfile", func() {
		It("reports a missing profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, ok, err := mgr.GetProfile("nonexistent")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("RemoveProfile", func() {
		It("removes an existing profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("default", credentials.Profile{Token: "tok"})).To(Succeed())
			Expect(mgr.RemoveProfile("default")).To(Succeed())

			_, ok, err := mgr.GetProfile("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("is a no-op for a nonexistent profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.RemoveProfile("nonexistent")).To(Succeed())
		})
	})

	Describe("ListProfiles", func() {
		It("returns stored profiles in sorted order", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("work", credentials.Profile{Token: "1"})).To(Succeed())
			Expect(mgr.SetProfile("personal", credentials.Profile{Token: "2"})).To(Succeed())

			names, err := mgr.ListProfiles()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"personal", "work"}))
		})
	})
})
