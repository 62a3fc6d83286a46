package library

import (
	"encoding/xml"
	"strings"
)

const nfoHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"

// MovieNFOName and ShowNFOName are the sidecar file names media servers
// look for inside a title folder.
const (
	MovieNFOName = "movie.nfo"
	ShowNFOName  = "tvshow.nfo"
)

// NFOInfo carries the fields written into a sidecar.
type NFOInfo struct {
	Title  string
	Year   int
	TMDBID int64
	Plot   string
	Poster string
}

type uniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr"`
	Value   int64  `xml:",chardata"`
}

type nfoDocument struct {
	XMLName  xml.Name
	Title    string    `xml:"title"`
	Year     int       `xml:"year,omitempty"`
	Plot     string    `xml:"plot,omitempty"`
	Thumb    string    `xml:"thumb,omitempty"`
	UniqueID *uniqueID `xml:"uniqueid,omitempty"`
	TMDBID   int64     `xml:"tmdbid,omitempty"`
}

// EncodeMovieNFO renders a Kodi/Jellyfin compatible movie.nfo.
func EncodeMovieNFO(info NFOInfo) ([]byte, error) {
	return encodeNFO("movie", info)
}

// EncodeShowNFO renders a tvshow.nfo.
func EncodeShowNFO(info NFOInfo) ([]byte, error) {
	return encodeNFO("tvshow", info)
}

func encodeNFO(root string, info NFOInfo) ([]byte, error) {
	doc := nfoDocument{
		XMLName: xml.Name{Local: root},
		Title:   strings.TrimSpace(info.Title),
		Year:    info.Year,
		Plot:    strings.TrimSpace(info.Plot),
		Thumb:   strings.TrimSpace(info.Poster),
	}
	if info.TMDBID > 0 {
		doc.UniqueID = &uniqueID{Type: "tmdb", Default: true, Value: info.TMDBID}
		doc.TMDBID = info.TMDBID
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(nfoHeader), append(b, '\n')...), nil
}
