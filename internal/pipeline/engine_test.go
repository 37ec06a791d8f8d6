package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"showcase/internal/adapter/repo"
	"showcase/internal/domain"
	"showcase/internal/providers/model3d"
	"showcase/internal/providers/speech"
	"showcase/internal/providers/video"
)

// tracker counts collaborator calls and injects failures by call name.
type tracker struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newTracker() *tracker {
	return &tracker{fail: make(map[string]error)}
}

func (t *tracker) hit(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, name)
	return t.fail[name]
}

func (t *tracker) count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (t *tracker) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type stubStore struct{ tr *tracker }

func (s stubStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := s.tr.hit("upload"); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://cdn.test/uploads/%d", s.tr.count("upload")), nil
}

type stubRemover struct{ tr *tracker }

func (s stubRemover) Remove(ctx context.Context, imageURL string) ([]byte, error) {
	if err := s.tr.hit("remove_bg"); err != nil {
		return nil, err
	}
	return []byte("clean-png"), nil
}

type stubWriter struct{ tr *tracker }

func (s stubWriter) ScenePrompts(ctx context.Context, description string) ([]string, error) {
	if err := s.tr.hit("scene_prompts"); err != nil {
		return nil, err
	}
	return []string{"scene one", "scene two", "scene three"}, nil
}

func (s stubWriter) SceneScripts(ctx context.Context, scenes []string) ([]string, error) {
	if err := s.tr.hit("scene_scripts"); err != nil {
		return nil, err
	}
	parts := make([]string, len(scenes))
	for i := range scenes {
		parts[i] = fmt.Sprintf("voiceover %d", i+1)
	}
	return parts, nil
}

func (s stubWriter) Translate(ctx context.Context, parts []string, lang string) ([]string, error) {
	if err := s.tr.hit("translate"); err != nil {
		return nil, err
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = lang + ": " + p
	}
	return out, nil
}

func (s stubWriter) AvatarScript(ctx context.Context, description, lang string) (string, error) {
	if err := s.tr.hit("avatar_script"); err != nil {
		return "", err
	}
	return "spoken script in " + lang, nil
}

type stubSpeech struct{ tr *tracker }

func (s stubSpeech) Synthesize(ctx context.Context, parts []string, lang string) ([]speech.Clip, error) {
	if err := s.tr.hit("tts"); err != nil {
		return nil, err
	}
	clips := make([]speech.Clip, len(parts))
	for i := range parts {
		clips[i] = speech.Clip{URL: fmt.Sprintf("https://cdn.test/audio/%d.mp3", i+1), Duration: 5}
	}
	return clips, nil
}

type stubVideo struct{ tr *tracker }

func (s stubVideo) Animate(ctx context.Context, imageURL, prompt string, duration float64) (video.Clip, error) {
	if err := s.tr.hit("animate"); err != nil {
		return video.Clip{}, err
	}
	return video.Clip{URL: "https://cdn.test/clip-for-" + prompt}, nil
}

func (s stubVideo) Compose(ctx context.Context, videoURLs, audioURLs []string) (string, error) {
	if err := s.tr.hit("compose"); err != nil {
		return "", err
	}
	return "https://cdn.test/final.mp4", nil
}

func (s stubVideo) Caption(ctx context.Context, videoURL string) (string, error) {
	if err := s.tr.hit("caption"); err != nil {
		return "", err
	}
	return videoURL + "#captioned", nil
}

func (s stubVideo) SynthesizeAvatar(ctx context.Context, avatarID, script string) (video.Clip, error) {
	if err := s.tr.hit("avatar_video"); err != nil {
		return video.Clip{}, err
	}
	return video.Clip{URL: "https://cdn.test/avatar.mp4"}, nil
}

type stubTryOn struct{ tr *tracker }

func (s stubTryOn) TryOn(ctx context.Context, modelImageURL, garmentImageURL string) ([]string, error) {
	if err := s.tr.hit("tryon"); err != nil {
		return nil, err
	}
	return []string{"https://cdn.test/tryon-1.png", "https://cdn.test/tryon-2.png"}, nil
}

type stubModel3D struct{ tr *tracker }

func (s stubModel3D) Synthesize(ctx context.Context, imageURL string) (model3d.Model, error) {
	if err := s.tr.hit("model3d"); err != nil {
		return model3d.Model{}, err
	}
	return model3d.Model{
		MeshURL:     "https://cdn.test/mesh.glb",
		TextureURLs: []string{"https://cdn.test/tex.png"},
	}, nil
}

// recordingRepo observes every checkpoint write in commit order.
type recordingRepo struct {
	domain.JobRepository
	mu    sync.Mutex
	steps map[string][]domain.Step
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{
		JobRepository: repo.NewMemoryJobRepository(),
		steps:         make(map[string][]domain.Step),
	}
}

func (r *recordingRepo) Update(ctx context.Context, requestID string, patch domain.JobUpdate) error {
	if err := r.JobRepository.Update(ctx, requestID, patch); err != nil {
		return err
	}
	if patch.CurrentStep != nil {
		r.mu.Lock()
		r.steps[requestID] = append(r.steps[requestID], *patch.CurrentStep)
		r.mu.Unlock()
	}
	return nil
}

func (r *recordingRepo) stepsFor(requestID string) []domain.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Step(nil), r.steps[requestID]...)
}

func newTestEngine(t *testing.T, store domain.JobRepository, tr *tracker) *Engine {
	t.Helper()
	engine, err := NewEngine(Options{
		Repo:            store,
		Store:           stubStore{tr},
		Remover:         stubRemover{tr},
		Writer:          stubWriter{tr},
		Speech:          stubSpeech{tr},
		Animator:        stubVideo{tr},
		Composer:        stubVideo{tr},
		Captions:        stubVideo{tr},
		Avatar:          stubVideo{tr},
		TryOn:           stubTryOn{tr},
		Model3D:         stubModel3D{tr},
		MaxActiveJobs:   4,
		StepTimeout:     time.Second,
		DefaultAvatarID: "marcus_primary",
	})
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func waitTerminal(t *testing.T, store domain.JobRepository, requestID string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByRequestID(context.Background(), requestID)
		if err == nil && job.Status.Terminal() {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", requestID)
	return nil
}

func shortVideoInput(langs ...string) ShortVideoInput {
	return ShortVideoInput{
		ImageURL:    "https://cdn.test/in.jpg",
		Description: "noise-cancelling headphones",
		Languages:   langs,
	}
}

// gatedRepo holds every Update until released, so a test can observe the
// record exactly as the submission path left it.
type gatedRepo struct {
	domain.JobRepository
	gate chan struct{}
}

func (r *gatedRepo) Update(ctx context.Context, requestID string, patch domain.JobUpdate) error {
	<-r.gate
	return r.JobRepository.Update(ctx, requestID, patch)
}

func TestSubmitReturnsQueuedBeforeAnyStep(t *testing.T) {
	gated := &gatedRepo{JobRepository: repo.NewMemoryJobRepository(), gate: make(chan struct{})}
	tr := newTracker()
	engine := newTestEngine(t, gated, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("outcomes = %#v", outcomes)
	}

	job, err := gated.GetByRequestID(context.Background(), outcomes[0].RequestID)
	if err != nil {
		t.Fatalf("GetByRequestID returned error: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("status right after submit = %q, want queued", job.Status)
	}
	if job.CurrentStep != domain.StepQueued {
		t.Fatalf("step right after submit = %q, want queued", job.CurrentStep)
	}

	close(gated.gate)
	waitTerminal(t, gated, outcomes[0].RequestID)
}

func TestShortVideoEnglishHappyPath(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)

	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %q (%s), want done", job.Status, job.ErrorMessage)
	}
	if job.CurrentStep != domain.StepDone {
		t.Fatalf("current step = %q, want done", job.CurrentStep)
	}
	if job.VideoURL != "https://cdn.test/final.mp4" {
		t.Fatalf("video url = %q", job.VideoURL)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("error message = %q, want empty", job.ErrorMessage)
	}
	if job.CleanImageURL == "" {
		t.Fatal("clean image url not persisted")
	}

	if got := tr.count("translate"); got != 0 {
		t.Fatalf("translate calls for English = %d, want 0", got)
	}
	if got := tr.count("animate"); got != 3 {
		t.Fatalf("animate calls = %d, want one per scene", got)
	}

	want := []domain.Step{
		domain.StepInputUploaded,
		domain.StepBGRemoved,
		domain.StepSceneDone,
		domain.StepScriptDone,
		domain.StepTTSDone,
		domain.StepClipsDone,
		domain.StepDone,
	}
	got := store.stepsFor(job.RequestID)
	if len(got) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("checkpoint %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestShortVideoCheckpointsAdvanceMonotonically(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("de"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)
	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %q (%s)", job.Status, job.ErrorMessage)
	}

	last := -1
	for _, step := range store.stepsFor(job.RequestID) {
		index := domain.StepIndex(domain.JobTypeShortVideo, step)
		if index < 0 {
			t.Fatalf("checkpoint %q not in the short video sequence", step)
		}
		if index <= last {
			t.Fatalf("checkpoint %q did not advance (index %d after %d)", step, index, last)
		}
		last = index
	}
	if got := tr.count("translate"); got != 1 {
		t.Fatalf("translate calls for German = %d, want 1", got)
	}
}

func TestShortVideoTTSFailureStopsPipeline(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	tr.fail["tts"] = errors.New("speech backend unavailable")
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)

	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
	// The step field stays at the last committed checkpoint.
	if job.CurrentStep != domain.StepScriptDone {
		t.Fatalf("current step = %q, want script_done", job.CurrentStep)
	}
	if !strings.Contains(job.ErrorMessage, "speech backend unavailable") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	if job.VideoURL != "" {
		t.Fatalf("video url = %q, want empty on failure", job.VideoURL)
	}

	steps := store.stepsFor(job.RequestID)
	if len(steps) == 0 || steps[len(steps)-1] != domain.StepScriptDone {
		t.Fatalf("checkpoints = %v, want script_done last", steps)
	}

	// Nothing after the failing step ran.
	for _, name := range []string{"animate", "compose", "caption"} {
		if got := tr.count(name); got != 0 {
			t.Fatalf("%s calls after TTS failure = %d, want 0", name, got)
		}
	}
}

func TestShortVideoEarlyFailureCallCount(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	tr.fail["remove_bg"] = errors.New("segmentation quota exceeded")
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
	// Only the failing call itself ran; the input arrived as a URL so no
	// upload preceded it.
	if got := tr.total(); got != 1 {
		t.Fatalf("collaborator calls = %d (%v), want 1", got, tr.calls)
	}
	// Earlier progress stays visible after the failure.
	if job.ImageURL == "" {
		t.Fatal("input image url lost on failure")
	}
}

func TestBatchLanguagesFailIndependently(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	tr.fail["translate"] = errors.New("translation rejected")
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en", "de"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	byLang := map[string]*domain.Job{}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("outcome for %s errored at submit: %v", o.Language, o.Err)
		}
		byLang[o.Language] = waitTerminal(t, store, o.RequestID)
	}

	if byLang["en"].Status != domain.JobStatusDone {
		t.Fatalf("en status = %q (%s), want done", byLang["en"].Status, byLang["en"].ErrorMessage)
	}
	if byLang["de"].Status != domain.JobStatusError {
		t.Fatalf("de status = %q, want error", byLang["de"].Status)
	}
	if byLang["en"].RequestID == byLang["de"].RequestID {
		t.Fatal("languages shared one job record")
	}
	// Exactly one of result and error is populated on each.
	if byLang["en"].VideoURL == "" || byLang["en"].ErrorMessage != "" {
		t.Fatalf("en result fields: video=%q error=%q", byLang["en"].VideoURL, byLang["en"].ErrorMessage)
	}
	if byLang["de"].VideoURL != "" || byLang["de"].ErrorMessage == "" {
		t.Fatalf("de result fields: video=%q error=%q", byLang["de"].VideoURL, byLang["de"].ErrorMessage)
	}
}

func TestStatusSnapshotIdempotent(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	waitTerminal(t, store, outcomes[0].RequestID)

	first, err := store.GetByRequestID(context.Background(), outcomes[0].RequestID)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := store.GetByRequestID(context.Background(), outcomes[0].RequestID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first.Status != second.Status || first.CurrentStep != second.CurrentStep ||
		first.VideoURL != second.VideoURL || !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("snapshots differ: %#v vs %#v", first, second)
	}
}

func TestSubmitShortVideoValidation(t *testing.T) {
	store := repo.NewMemoryJobRepository()
	engine := newTestEngine(t, store, newTracker())

	tests := []struct {
		name string
		in   ShortVideoInput
	}{
		{name: "missing description", in: ShortVideoInput{ImageURL: "https://x", Languages: []string{"en"}}},
		{name: "missing image", in: ShortVideoInput{Description: "d", Languages: []string{"en"}}},
		{name: "no languages", in: ShortVideoInput{ImageURL: "https://x", Description: "d"}},
		{name: "blank language", in: ShortVideoInput{ImageURL: "https://x", Description: "d", Languages: []string{" "}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.SubmitShortVideo(context.Background(), tc.in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	// Validation failures never create a job.
	jobs, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs created by invalid submissions = %d", len(jobs))
	}
}

func TestAvatarVideoHappyPath(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	outcomes, err := engine.SubmitAvatarVideo(context.Background(), AvatarInput{
		Description: "a message about focus",
		Languages:   []string{"en"},
	})
	if err != nil {
		t.Fatalf("SubmitAvatarVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)
	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %q (%s)", job.Status, job.ErrorMessage)
	}
	if job.VideoURL != "https://cdn.test/avatar.mp4#captioned" {
		t.Fatalf("video url = %q", job.VideoURL)
	}

	want := []domain.Step{domain.StepScriptDone, domain.StepAvatarVideoDone, domain.StepDone}
	got := store.stepsFor(job.RequestID)
	if len(got) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("checkpoint %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTryOnHappyPath(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	requestID, err := engine.SubmitTryOn(context.Background(), TryOnInput{
		ModelImage:   []byte("model"),
		GarmentImage: []byte("garment"),
		Description:  "summer jacket",
	})
	if err != nil {
		t.Fatalf("SubmitTryOn returned error: %v", err)
	}
	job := waitTerminal(t, store, requestID)
	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %q (%s)", job.Status, job.ErrorMessage)
	}
	if len(job.MergedImageURLs) != 2 {
		t.Fatalf("merged image urls = %#v", job.MergedImageURLs)
	}
	if job.VideoURL != job.MergedImageURLs[0] {
		t.Fatalf("video url = %q, want first output image", job.VideoURL)
	}
	// Both inputs persisted before synthesis: garment as the input
	// artifact, model alongside it.
	if job.ImageURL == "" || job.CleanImageURL == "" {
		t.Fatalf("input urls not persisted: %q %q", job.ImageURL, job.CleanImageURL)
	}
	if got := tr.count("upload"); got != 2 {
		t.Fatalf("uploads = %d, want 2", got)
	}
}

func TestProduct3DHappyPath(t *testing.T) {
	store := newRecordingRepo()
	tr := newTracker()
	engine := newTestEngine(t, store, tr)

	requestID, err := engine.SubmitProduct3D(context.Background(), Product3DInput{Image: []byte("img")})
	if err != nil {
		t.Fatalf("SubmitProduct3D returned error: %v", err)
	}
	job := waitTerminal(t, store, requestID)
	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %q (%s)", job.Status, job.ErrorMessage)
	}
	if job.VideoURL != "https://cdn.test/mesh.glb" {
		t.Fatalf("mesh url = %q", job.VideoURL)
	}
	if len(job.MergedImageURLs) != 1 {
		t.Fatalf("texture urls = %#v", job.MergedImageURLs)
	}
}

type panickyWriter struct{ stubWriter }

func (p panickyWriter) ScenePrompts(ctx context.Context, description string) ([]string, error) {
	panic("writer exploded")
}

func TestPanicInStepBecomesTerminalError(t *testing.T) {
	store := repo.NewMemoryJobRepository()
	tr := newTracker()
	engine, err := NewEngine(Options{
		Repo:          store,
		Store:         stubStore{tr},
		Remover:       stubRemover{tr},
		Writer:        panickyWriter{stubWriter{tr}},
		Speech:        stubSpeech{tr},
		Animator:      stubVideo{tr},
		Composer:      stubVideo{tr},
		Captions:      stubVideo{tr},
		Avatar:        stubVideo{tr},
		TryOn:         stubTryOn{tr},
		Model3D:       stubModel3D{tr},
		MaxActiveJobs: 1,
		StepTimeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	t.Cleanup(engine.Close)

	outcomes, err := engine.SubmitShortVideo(context.Background(), shortVideoInput("en"))
	if err != nil {
		t.Fatalf("SubmitShortVideo returned error: %v", err)
	}
	job := waitTerminal(t, store, outcomes[0].RequestID)
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "writer exploded") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	runner := NewRunner(2)
	defer runner.Close()

	var mu sync.Mutex
	active, peak := 0, 0
	release := make(chan struct{})
	done := make(chan struct{}, 5)

	for i := 0; i < 5; i++ {
		runner.Go(func(ctx context.Context) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			<-release
			mu.Lock()
			active--
			mu.Unlock()
			done <- struct{}{}
		})
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if peak > 2 {
		mu.Unlock()
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
	mu.Unlock()

	close(release)
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks did not drain")
		}
	}
}

func TestRunnerCloseDropsNewTasks(t *testing.T) {
	runner := NewRunner(1)
	runner.Close()

	ran := false
	runner.Go(func(ctx context.Context) { ran = true })
	time.Sleep(10 * time.Millisecond)
	if ran {
		t.Fatal("task ran after Close")
	}
}
