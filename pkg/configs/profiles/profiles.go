// Package profiles manages connection settings to the API server.
//
// Profiles are stored in a YAML file (by default ~/.md/profile) keyed by profile name.
// A profile can be overridden with environment variables:
//
//   - MD_API_BASE_URL: API root
//   - MD_AUTH_TOKEN: bearer token
//   - MD_CA_CERT: base64 encoded CA certificate (PEM)
package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hectane/go-acl"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yaml "gopkg.in/yaml.v3"
)

var ErrProfileStoreNotFound = errors.New("profile store is not found")
var ErrCannotCreateConfig = errors.New("cannot create config file")
var ErrCannotUpdateConfig = errors.New("cannot update config file")
var ErrProfileInvalid = errors.New("profile is invalid")

const (
	EnvApiRoot = "MD_API_BASE_URL"
	EnvToken   = "MD_AUTH_TOKEN"
	EnvCA      = "MD_CA_CERT"

	DefaultProfileName = "default"
)

// koanf key delimiter. Profile names must not contain it.
const keyDelim = "/"

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty" koanf:"ca"`
}

// Profile is a set of parameters to connect the API server.
type Profile struct {
	// base URL of the API (e.g. https://md.example.com/api/v2)
	ApiRoot string `yaml:"apiRoot" koanf:"apiRoot"`

	// bearer token
	Token string `yaml:"token,omitempty" koanf:"token"`

	// cert is a certificate for the API server.
	Cert Cert `yaml:"cert" koanf:"cert"`
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify Profile
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	if !verifyUrl(p.ApiRoot) {
		return fmt.Errorf("%w: apiRoot is not URL: %s", ErrProfileInvalid, p.ApiRoot)
	}
	if p.Cert.CA != "" && !verifyPEM(p.Cert.CA) {
		return fmt.Errorf("%w: cert.ca is not PEM", ErrProfileInvalid)
	}
	return nil
}

// DefaultStorePath returns ~/.md/profile.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".md", "profile"), nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshall(buf)
}

// Unmarshall profile store from yaml in byte array.
func Unmarshall(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Resolve builds the profile to be used.
//
// Values are layered, later wins:
//
//  1. the profile named `name` in the store file at storePath (skipped if the file does not exist)
//  2. environment variables (MD_API_BASE_URL, MD_AUTH_TOKEN, MD_CA_CERT)
//  3. overrides, keyed by "apiRoot", "token" or "cert/ca". Empty values are ignored.
//
// The result is verified.
func Resolve(storePath string, name string, overrides map[string]string) (*Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}
	if strings.Contains(name, keyDelim) {
		return nil, fmt.Errorf("%w: profile name should not contain %q: %s", ErrProfileInvalid, keyDelim, name)
	}

	k := koanf.New(keyDelim)

	if storePath != "" {
		if _, err := os.Stat(storePath); err == nil {
			store := koanf.New(keyDelim)
			if err := store.Load(file.Provider(storePath), kyaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading profile store %s: %w", storePath, err)
			}
			if err := k.Merge(store.Cut(name)); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("MD_", keyDelim, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	given := map[string]any{}
	for key, v := range overrides {
		if v != "" {
			given[key] = v
		}
	}
	if err := k.Load(confmap.Provider(given, keyDelim), nil); err != nil {
		return nil, err
	}

	prof := new(Profile)
	if err := k.Unmarshal("", prof); err != nil {
		return nil, fmt.Errorf("unable to decode profile: %w", err)
	}
	if err := prof.Verify(); err != nil {
		return nil, err
	}
	return prof, nil
}

func envKey(s string) string {
	switch s {
	case EnvApiRoot:
		return "apiRoot"
	case EnvToken:
		return "token"
	case EnvCA:
		return "cert" + keyDelim + "ca"
	default:
		return ""
	}
}

// newSafeFile creates a new empty file which is accessible only by the current user.
//
// If the file already exists, it will be truncated.
func newSafeFile(filepath string) (*os.File, error) {
	f, err := os.OpenFile(filepath, os.O_TRUNC|os.O_CREATE|os.O_RDWR, os.FileMode(0600))
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Save profile store to file.
//
// The previous content is kept at path + ".backup" while writing,
// and is left there if writing fails.
func (ps *ProfileStore) Save(path string) error {
	saving := false

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := newSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !saving {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		// existing file may have loose permission.
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			f.Close()
			return err
		}
	} else if os.IsPermission(err) {
		return fmt.Errorf(
			"%w, because no permission to write file at %s",
			ErrCannotUpdateConfig, path,
		)
	} else if os.IsNotExist(err) {
		f_, err_ := newSafeFile(path)
		if err_ != nil {
			return fmt.Errorf("%w: cannot create a file at %s", ErrCannotCreateConfig, path)
		}
		f = f_
	} else {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	saving = true
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	saving = false
	return nil
}
