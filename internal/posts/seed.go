package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultSeed returns the posts the blog ships with, in listing order.
func DefaultSeed() []Post {
	return []Post{
		{
			ID:      1,
			Title:   "The Future of Web Development",
			Excerpt: "Exploring the latest trends and technologies shaping the web development landscape in 2025.",
			Content: "Exploring the latest trends and technologies shaping the web development landscape in 2025.",
			Author:  "Tech Team",
			Image:   "https://images.unsplash.com/photo-1563089145-599997674d42?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NTY2NzZ8MHwxfHNlYXJjaHwxfHxwcm9ncmFtbWluZ3xlbnwwfHx8cHVycGxlfDE3NDk1ODI3MTZ8MA&ixlib=rb-4.1.0&q=85",
			Date:    "2025-01-15",
		},
		{
			ID:      2,
			Title:   "Mobile App Design Trends",
			Excerpt: "Discover the latest mobile app design trends that are revolutionizing user experiences.",
			Content: "Discover the latest mobile app design trends that are revolutionizing user experiences.",
			Author:  "Design Team",
			Image:   "https://images.pexels.com/photos/5475761/pexels-photo-5475761.jpeg",
			Date:    "2025-01-10",
		},
		{
			ID:      3,
			Title:   "Brand Identity in Digital Age",
			Excerpt: "How to create compelling brand identities that resonate in the digital landscape.",
			Content: "How to create compelling brand identities that resonate in the digital landscape.",
			Author:  "Creative Team",
			Image:   "https://images.unsplash.com/photo-1619708838487-d18b744f2ea4?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NTY2NzV8MHwxfHNlYXJjaHwyfHxjcmVhdGl2ZSUyMGRlc2lnbnxlbnwwfHx8cHVycGxlfDE3NDk1ODI3MTB8MA&ixlib=rb-4.1.0&q=85",
			Date:    "2025-01-05",
		},
	}
}

// LoadSeedFile reads a JSON array of posts from path.
// Returns os.ErrNotExist if the file doesn't exist.
// An empty file yields no posts and no error.
func LoadSeedFile(path string) ([]Post, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if st.Size() == 0 {
		return nil, nil
	}

	var seed []Post
	if err := json.NewDecoder(f).Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := ValidateSeed(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// WriteSeedFile writes posts to path as indented JSON, replacing the file
// atomically and keeping its permissions (0644 for a new file).
func WriteSeedFile(path string, seed []Post) error {
	if _, err := ValidateSeed(seed); err != nil {
		return err
	}

	mode := fs.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat: %w", err)
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data, mode); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	abort := func(step string, err error) error {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	if err := tmp.Chmod(mode); err != nil {
		return abort("chmod temp", err)
	}
	if _, err := tmp.Write(content); err != nil {
		return abort("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return abort("fsync temp", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}

	// Durability of the rename itself; failure here is not fatal.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
