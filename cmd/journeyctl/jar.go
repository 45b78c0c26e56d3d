package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
)

// fileJar is a cookie jar for a single server that survives between runs.
type fileJar struct {
	*cookiejar.Jar
	path string
	u    *url.URL
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func openFileJar(path, server string) (*fileJar, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	fj := &fileJar{Jar: jar, path: path, u: u}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fj, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var saved []savedCookie
	if err := json.Unmarshal(raw, &saved); err != nil {
		// Damaged file: start with an empty jar.
		return fj, nil
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return fj, nil
}

func (j *fileJar) Save() error {
	current := j.Cookies(j.u)
	saved := make([]savedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.path, raw, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	return nil
}
