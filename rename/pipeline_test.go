package rename

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/levmv/photoarc/metadata"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeMeta keeps tag blocks in memory, keyed by path, and mirrors writes
// back into them so a second run sees what the first one stored.
type fakeMeta struct {
	blocks   map[string]*metadata.Block
	writes   map[string]metadata.Encoded
	camera   map[string]bool
	failWith error
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		blocks: map[string]*metadata.Block{},
		writes: map[string]metadata.Encoded{},
		camera: map[string]bool{},
	}
}

func (f *fakeMeta) Read(path string) (*metadata.Block, error) {
	b, ok := f.blocks[path]
	if !ok {
		return nil, metadata.ErrNoMetadata
	}
	clone := metadata.NewBlock()
	for _, tag := range b.Tags() {
		v, _ := b.Get(tag)
		clone.Set(tag, v)
	}
	return clone, nil
}

func (f *fakeMeta) Write(path string, enc metadata.Encoded) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.writes[path] = enc
	b := metadata.NewBlock()
	for k, v := range enc.Fields {
		b.Set(k, v)
	}
	f.blocks[path] = b
	return nil
}

func (f *fakeMeta) IsCamera(path string) bool {
	v, ok := f.camera[path]
	return !ok || v
}

func (f *fakeMeta) VideoCreationTime(string) (string, error) {
	return "2020:01:01 00:00:00", nil
}

func dated(original string) *metadata.Block {
	b := metadata.NewBlock()
	b.Set(metadata.TagDateTimeOriginal, original)
	return b
}

func put(t *testing.T, dir, name string, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestTimestampResolution(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()

	orig := put(t, dir, "a.jpg", "a")
	meta.blocks[orig] = dated("2019:05:06 07:08:01")

	blank := put(t, dir, "b.jpg", "b")
	bb := dated("   ")
	bb.Set(metadata.TagModifyDate, "2018:01:02 03:04:05")
	meta.blocks[blank] = bb

	none := put(t, dir, "c.jpg", "c")
	info, err := os.Stat(none)
	if err != nil {
		t.Fatal(err)
	}
	fileStamp := creationTime(info).Format(StampLayout)

	p := New(meta, quiet, Options{})
	ctx := context.Background()

	tests := []struct {
		path string
		want string
	}{
		{orig, "2019-05-06_070801.jpg"},
		{blank, "2018-01-02_030405.jpg"},
		{none, fileStamp + ".jpg"},
	}
	for _, tt := range tests {
		res, err := p.Process(ctx, tt.path)
		if err != nil {
			t.Fatalf("%s: %v", tt.path, err)
		}
		if got := filepath.Base(res.To); got != tt.want {
			t.Errorf("%s renamed to %s, want %s", filepath.Base(tt.path), got, tt.want)
		}
		if res.Outcome != Renamed {
			t.Errorf("%s outcome = %v", tt.path, res.Outcome)
		}
	}
}

func TestProvenancePreserved(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()

	fresh := put(t, dir, "IMG_0001.JPG", "1")
	meta.blocks[fresh] = dated("2020:02:02 10:00:00")

	again := put(t, dir, "2011-01-01_000000.JPG", "2")
	b := dated("2020:02:02 11:00:00")
	b.Set(metadata.TagImageDescription, "DSC_9999.JPG")
	meta.blocks[again] = b

	p := New(meta, quiet, Options{ExtCase: ExtLower})
	ctx := context.Background()

	res, err := p.Process(ctx, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(res.To) != "2020-02-02_100000.jpg" {
		t.Errorf("to = %s", res.To)
	}
	if got := meta.writes[res.To].Fields[metadata.TagImageDescription]; got != "IMG_0001.JPG" {
		t.Errorf("original name written = %v", got)
	}

	res, err = p.Process(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if got := meta.writes[res.To].Fields[metadata.TagImageDescription]; got != "DSC_9999.JPG" {
		t.Errorf("stored original name must survive, got %v", got)
	}
}

func TestRenameIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	for name, stamp := range map[string]string{
		"x.jpg": "2021:07:01 12:00:00",
		"y.jpg": "2021:07:02 12:00:00",
		"z.png": "2021:07:01 12:00:00",
	} {
		meta.blocks[put(t, dir, name, name)] = dated(stamp)
	}
	ctx := context.Background()

	first, err := New(meta, quiet, Options{Suffix: "_trip"}).Run(ctx, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Renamed != 3 {
		t.Fatalf("first run renamed %d, want 3", first.Renamed)
	}
	after := listDir(t, dir)

	second, err := New(meta, quiet, Options{Suffix: "_trip"}).Run(ctx, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Renamed != 0 || second.Unchanged != 3 {
		t.Errorf("second run: renamed %d unchanged %d", second.Renamed, second.Unchanged)
	}
	if strings.Join(listDir(t, dir), ",") != strings.Join(after, ",") {
		t.Errorf("names changed: %v -> %v", after, listDir(t, dir))
	}
}

func TestUndatedRenameIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	path := put(t, dir, "scan.jpg", "no tags")
	shot := time.Date(2015, 3, 4, 5, 6, 7, 0, time.Local)
	if err := os.Chtimes(path, shot, shot); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	time.Sleep(1100 * time.Millisecond)
	first, err := New(meta, quiet, Options{}).Run(ctx, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Renamed != 1 {
		t.Fatalf("first run renamed %d, want 1", first.Renamed)
	}
	named := listDir(t, dir)
	if runtime.GOOS != "darwin" && strings.Join(named, ",") != "2015-03-04_050607.jpg" {
		t.Errorf("named from modification time: %v", named)
	}

	time.Sleep(1100 * time.Millisecond)
	second, err := New(meta, quiet, Options{}).Run(ctx, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Renamed != 0 || second.Unchanged != 1 {
		t.Errorf("second run: renamed %d unchanged %d", second.Renamed, second.Unchanged)
	}
	if got := listDir(t, dir); strings.Join(got, ",") != strings.Join(named, ",") {
		t.Errorf("name changed between runs: %v -> %v", named, got)
	}
}

func TestUndatedCanonicalNameKept(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	path := put(t, dir, "2001-02-03_040506_2_trip.JPG", "no tags")

	res, err := New(meta, quiet, Options{Suffix: "_trip"}).Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Unchanged || res.To != path {
		t.Errorf("result = %+v", res)
	}
	if got := meta.writes[path].Fields[metadata.TagImageDescription]; got != "2001-02-03_040506_2_trip.JPG" {
		t.Errorf("provenance not recorded: %v", got)
	}
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		name, suffix, ext string
		want              bool
	}{
		{"2001-02-03_040506.jpg", "", ".jpg", true},
		{"2001-02-03_040506_12.jpg", "", ".jpg", true},
		{"2001-02-03_040506_x.jpg", "_x", ".jpg", true},
		{"2001-02-03_040506_3_x.jpg", "_x", ".jpg", true},
		{"2001-02-03_040506.JPG", "", ".jpg", false},
		{"2001-02-03_040506_x.jpg", "", ".jpg", false},
		{"2001-02-03_040506_.jpg", "", ".jpg", false},
		{"2001-13-03_040506.jpg", "", ".jpg", false},
		{"IMG_0001.jpg", "", ".jpg", false},
	}
	for _, tt := range tests {
		if got := isCanonical(tt.name, tt.suffix, tt.ext); got != tt.want {
			t.Errorf("isCanonical(%q, %q, %q) = %v", tt.name, tt.suffix, tt.ext, got)
		}
	}
}

func TestCollisionsNeverOverwrite(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	const stamp = "2022:03:04 05:06:07"

	existing := put(t, dir, "2022-03-04_050607.jpg", "already here")
	meta.blocks[existing] = dated(stamp)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		meta.blocks[put(t, dir, name, name)] = dated(stamp)
	}

	stats, err := New(meta, quiet, Options{}).Run(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Renamed != 4 || stats.Unchanged != 1 {
		t.Errorf("stats = %+v", stats)
	}
	want := []string{
		"2022-03-04_050607.jpg",
		"2022-03-04_050607_1.jpg",
		"2022-03-04_050607_2.jpg",
		"2022-03-04_050607_3.jpg",
		"2022-03-04_050607_4.jpg",
	}
	if got := listDir(t, dir); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", got, want)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "already here" {
		t.Error("pre-existing file was overwritten")
	}
}

func TestFreeNameWithSuffix(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2000, 1, 2, 3, 4, 5, 0, time.Local)
	taken := map[string]bool{
		filepath.Join(dir, "2000-01-02_030405_x.jpg"):   true,
		filepath.Join(dir, "2000-01-02_030405_1_x.jpg"): true,
	}
	got := freeName(dir, ts, "_x", ".jpg", "", func(p string) bool { return taken[p] })
	if want := filepath.Join(dir, "2000-01-02_030405_2_x.jpg"); got != want {
		t.Errorf("freeName = %s, want %s", got, want)
	}
}

func TestRepairAndStripFallback(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()

	repairable := put(t, dir, "r.jpg", "r")
	b := dated("2001:01:01 01:01:01")
	b.Set(metadata.TagSubSecTimeOriginal, int64(45))
	meta.blocks[repairable] = b

	broken := put(t, dir, "s.jpg", "s")
	bad := dated("2001:01:01 01:01:02")
	bad.Set(metadata.TagSubSecTimeDigitized, int64(4096))
	meta.blocks[broken] = bad

	p := New(meta, quiet, Options{})
	ctx := context.Background()

	res, err := p.Process(ctx, repairable)
	if err != nil {
		t.Fatal(err)
	}
	enc := meta.writes[res.To]
	if enc.Strip || enc.Fields[metadata.TagSubSecTimeOriginal] != "\x2d" {
		t.Errorf("repaired write = %#v", enc)
	}

	res, err = p.Process(ctx, broken)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(res.To) != "2001-01-01_010102.jpg" {
		t.Errorf("rename must proceed after stripping, got %s", res.To)
	}
	if enc := meta.writes[res.To]; !enc.Strip || len(enc.Fields) != 0 {
		t.Errorf("expected stripped block, got %#v", enc)
	}
}

func TestMetadataWriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	meta.failWith = errors.New("disk full")
	path := put(t, dir, "f.jpg", "f")
	meta.blocks[path] = dated("2005:05:05 05:05:05")

	p := New(meta, quiet, Options{MergeDir: filepath.Join(dir, "archive")})
	if _, err := p.Process(context.Background(), path); !errors.Is(err, ErrMetadataWrite) {
		t.Fatalf("err = %v, want ErrMetadataWrite", err)
	}
	if exists(filepath.Join(dir, "archive")) {
		t.Error("an aborted file must not reach the merge step")
	}

	put(t, dir, "g.jpg", "g")
	stats, err := p.Run(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 2 {
		t.Errorf("errors = %d, want 2", stats.Errors)
	}
}

func pixels(shift uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x*10) + shift, G: uint8(y * 15), B: shift, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image, level png.CompressionLevel) string {
	t.Helper()
	var buf bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: level}).Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestMerge(t *testing.T) {
	src := t.TempDir()
	archive := t.TempDir()
	meta := newFakeMeta()

	// Nothing at the target yet.
	fresh := put(t, src, "fresh.png", pngBytes(t, pixels(1), png.DefaultCompression))
	meta.blocks[fresh] = dated("2010:01:01 00:00:01")

	// Byte-identical copy already archived.
	same := pngBytes(t, pixels(2), png.DefaultCompression)
	copyOf := put(t, src, "copy.png", same)
	meta.blocks[copyOf] = dated("2010:01:01 00:00:02")
	put(t, archive, "2010-01-01_000002.png", same)

	// Same pixels, different bytes.
	repacked := put(t, src, "repacked.png", pngBytes(t, pixels(3), png.NoCompression))
	meta.blocks[repacked] = dated("2010:01:01 00:00:03")
	put(t, archive, "2010-01-01_000003.png", pngBytes(t, pixels(3), png.BestCompression))

	// Different photo under the same name.
	other := put(t, src, "other.png", pngBytes(t, pixels(4), png.DefaultCompression))
	meta.blocks[other] = dated("2010:01:01 00:00:04")
	put(t, archive, "2010-01-01_000004.png", pngBytes(t, pixels(99), png.DefaultCompression))

	stats, err := New(meta, quiet, Options{MergeDir: archive}).Run(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Merged != 1 || stats.Duplicates != 2 || stats.Skipped != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ReviewPaths) != 1 || filepath.Base(stats.ReviewPaths[0]) != "other.png" {
		t.Errorf("review paths = %v", stats.ReviewPaths)
	}

	if got := listDir(t, src); strings.Join(got, ",") != "2010-01-01_000004.png" {
		t.Errorf("source left with %v", got)
	}
	wantArchive := "2010-01-01_000001.png,2010-01-01_000002.png,2010-01-01_000003.png,2010-01-01_000004.png"
	if got := listDir(t, archive); strings.Join(got, ",") != wantArchive {
		t.Errorf("archive = %v", got)
	}
}

func TestMergeIntoSourceKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	path := put(t, dir, "only.jpg", "the only copy")
	meta.blocks[path] = dated("2016:06:06 06:06:06")
	ctx := context.Background()

	_, err := New(meta, quiet, Options{MergeDir: dir + string(filepath.Separator) + "."}).Run(ctx, dir, nil)
	if !errors.Is(err, ErrMergeIntoSource) {
		t.Fatalf("err = %v, want ErrMergeIntoSource", err)
	}
	if got := listDir(t, dir); strings.Join(got, ",") != "only.jpg" {
		t.Errorf("files = %v", got)
	}

	res, err := New(meta, quiet, Options{MergeDir: dir}).Process(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Renamed {
		t.Errorf("outcome = %v, want renamed", res.Outcome)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2016-06-06_060606.jpg"))
	if err != nil || string(data) != "the only copy" {
		t.Errorf("file lost: %q, %v", data, err)
	}
}

func TestNonCameraRoutedToReview(t *testing.T) {
	dir := t.TempDir()
	review := filepath.Join(t.TempDir(), "review")
	meta := newFakeMeta()

	shot := put(t, dir, "screenshot.png", "s")
	meta.camera[shot] = false
	meta.blocks[shot] = dated("2015:01:01 00:00:00")
	photo := put(t, dir, "photo.jpg", "p")
	meta.blocks[photo] = dated("2015:01:01 00:00:00")

	stats, err := New(meta, quiet, Options{CameraOnly: true, ReviewDir: review}).Run(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Review != 1 || stats.Renamed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !exists(filepath.Join(review, "screenshot.png")) {
		t.Error("screenshot not moved to review")
	}
	if _, ok := meta.writes[filepath.Join(review, "screenshot.png")]; ok {
		t.Error("review files must not be rewritten")
	}
}

func TestVideosAndOthersUntouched(t *testing.T) {
	dir := t.TempDir()
	meta := newFakeMeta()
	put(t, dir, "clip.MOV", "v")
	put(t, dir, "notes.txt", "n")
	put(t, dir, ".hidden.jpg", "h")

	stats, err := New(meta, quiet, Options{}).Run(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Videos != 1 || stats.Processed() != 0 || stats.Scanned != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if got := listDir(t, dir); strings.Join(got, ",") != ".hidden.jpg,clip.MOV,notes.txt" {
		t.Errorf("files = %v", got)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	archive := t.TempDir()
	meta := newFakeMeta()
	for _, name := range []string{"a.jpg", "b.jpg"} {
		meta.blocks[put(t, dir, name, name)] = dated("2012:12:12 12:12:12")
	}

	stats, err := New(meta, quiet, Options{DryRun: true, MergeDir: archive}).Run(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Merged != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if got := listDir(t, dir); strings.Join(got, ",") != "a.jpg,b.jpg" {
		t.Errorf("source changed: %v", got)
	}
	if got := listDir(t, archive); len(got) != 0 {
		t.Errorf("archive changed: %v", got)
	}
	if len(meta.writes) != 0 {
		t.Error("dry run wrote metadata")
	}
}

func TestPrintSummary(t *testing.T) {
	s := NewStats()
	s.Scanned, s.Renamed, s.Merged, s.Duplicates, s.Skipped = 5, 2, 1, 1, 1
	s.BytesMoved = 2048
	s.ReviewPaths = []string{"/in/x.jpg"}
	var out bytes.Buffer
	s.PrintSummary(&out)
	for _, want := range []string{"Total Scanned:", "Processed:", "Duplicates Removed:", "2.0 kB", "review: /in/x.jpg"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, out.String())
		}
	}
}
