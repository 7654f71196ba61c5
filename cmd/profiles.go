package cmd

import (
	"io/ioutil"
	"log"
	"path"
	"strings"

	"github.com/hscells/qprober/profile"
)

// Profile is used to communicate a profile loaded from disk over a channel.
type Profile struct {
	// Name is the file name with the extension removed, i.e., the name of the collection.
	Name    string
	Profile *profile.Profile
	Error   error
}

// LoadProfiles loads the profiles in a directory. The profiles are "lazy-loaded" as profiles of large collections can
// be big. Files that start with a dot are skipped. The channel is closed once every file has been sent.
func LoadProfiles(directory string, p chan Profile) {
	defer close(p)
	files, err := ioutil.ReadDir(directory)
	if err != nil {
		p <- ErrorProfile(err)
		return
	}

	for _, f := range files {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		log.Println(f.Name())
		prof, err := profile.Load(path.Join(directory, f.Name()))
		if err != nil {
			p <- ErrorProfile(err)
			continue
		}
		p <- ValueProfile(prof, f.Name())
	}
}

// ErrorProfile is a wrapper for an error.
func ErrorProfile(err error) Profile {
	return Profile{
		Error: err,
	}
}

// ValueProfile is a wrapper for a profile loaded from a file.
func ValueProfile(p *profile.Profile, fileName string) Profile {
	return Profile{
		Name:    strings.TrimSuffix(fileName, path.Ext(fileName)),
		Profile: p,
	}
}

// ReadProfiles loads every profile of a directory into a map keyed by collection name.
func ReadProfiles(directory string) (map[string]*profile.Profile, error) {
	c := make(chan Profile)
	go LoadProfiles(directory, c)
	profiles := make(map[string]*profile.Profile)
	var err error
	for p := range c {
		if p.Error != nil {
			if err == nil {
				err = p.Error
			}
			continue
		}
		profiles[p.Name] = p.Profile
	}
	return profiles, err
}
