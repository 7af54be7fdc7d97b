package internal

import "fmt"

// Message keys for status lines.
const (
	MsgScanning         = "scanning"
	MsgNoFiles          = "no_files"
	MsgFound            = "found"
	MsgScanError        = "scan_error"
	MsgSelectAtLeastOne = "select_at_least_one"
	MsgMaxDownloads     = "max_downloads"
	MsgDownloading      = "downloading"
	MsgDone             = "done"
	MsgSelectedStats    = "selected_stats"
	MsgDownloadBusy     = "download_busy"
)

var catalog = map[string]map[string]string{
	"en": {
		MsgScanning:         "Scanning the page (including frames)...",
		MsgNoFiles:          "No files of this type were found on the page.",
		MsgFound:            "Found %d files",
		MsgScanError:        "Scan error: %s",
		MsgSelectAtLeastOne: "Please select at least one file",
		MsgMaxDownloads:     "You can download up to %d files at a time",
		MsgDownloading:      "Downloading file %d of %d...",
		MsgDone:             "Download finished!",
		MsgSelectedStats:    "Selected %d of %d files",
		MsgDownloadBusy:     "A download is already running",
	},
	"he": {
		MsgScanning:         "סורק את הדף (כולל מסגרות)...",
		MsgNoFiles:          "לא נמצאו קבצים מסוג זה בדף.",
		MsgFound:            "נמצאו %d קבצים",
		MsgScanError:        "שגיאה בסריקה: %s",
		MsgSelectAtLeastOne: "אנא בחר לפחות קובץ אחד",
		MsgMaxDownloads:     "ניתן להוריד עד %d קבצים בו-זמנית",
		MsgDownloading:      "מוריד קובץ %d מתוך %d...",
		MsgDone:             "ההורדה הסתיימה!",
		MsgSelectedStats:    "נבחרו %d מתוך %d קבצים",
		MsgDownloadBusy:     "הורדה כבר מתבצעת",
	},
}

// Localizer formats status messages in one language.
type Localizer struct {
	lang string
}

// NewLocalizer falls back to English for unknown languages.
func NewLocalizer(lang string) *Localizer {
	if _, ok := catalog[lang]; !ok {
		lang = "en"
	}
	return &Localizer{lang: lang}
}

func (l *Localizer) Lang() string { return l.lang }

// T formats the message for key.
func (l *Localizer) T(key string, args ...any) string {
	text, ok := catalog[l.lang][key]
	if !ok {
		text = catalog["en"][key]
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// Languages lists supported language codes.
func Languages() []string { return []string{"en", "he"} }
