package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/danieljhkim/dotmirror/internal/config"
	"github.com/danieljhkim/dotmirror/internal/gitx"
)

var (
	headA    = plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	headB    = plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	treeA    = plumbing.NewHash("1111111111111111111111111111111111111111")
	filtered = plumbing.NewHash("2222222222222222222222222222222222222222")
	pubTip   = plumbing.NewHash("3333333333333333333333333333333333333333")
)

func testConfig() *config.Config {
	return &config.Config{
		PrivateRemote: "origin",
		PublicRemote:  "mirror",
		Branch:        "main",
		Excludes:      []string{"secrets"},
	}
}

// newFake returns a FakeRepo on branch main with one commit and both
// remotes configured, one publish away from its first release.
func newFake(t *testing.T) *gitx.FakeRepo {
	t.Helper()

	f := gitx.NewFakeRepo()
	f.Branch = "main"
	f.Remotes["origin"] = true
	f.Remotes["mirror"] = true
	f.Heads["main"] = headA
	f.Trees[headA] = treeA
	f.Messages[headA] = "add vimrc"
	f.FilteredHash = filtered
	return f
}

func TestRun_FirstPublish(t *testing.T) {
	f := newFake(t)
	p := New(f, testConfig())

	res, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Divergence != gitx.Ahead {
		t.Errorf("Divergence = %v, want ahead", res.Divergence)
	}
	if !res.PrivatePushed || !res.PublicPushed || res.NoOp {
		t.Errorf("unexpected result flags: %+v", res)
	}

	if len(f.PushBranchCalls) != 1 || f.PushBranchCalls[0].Remote != "origin" {
		t.Errorf("PushBranchCalls = %v, want one push to origin", f.PushBranchCalls)
	}
	if len(f.SynthesizeCalls) != 1 {
		t.Fatalf("SynthesizeCalls = %v, want one", f.SynthesizeCalls)
	}
	synth := f.SynthesizeCalls[0]
	if synth.Tree != filtered {
		t.Errorf("synthesized tree = %s, want filtered tree %s", synth.Tree, filtered)
	}
	if !synth.Parent.IsZero() {
		t.Errorf("synthesized parent = %s, want none on first publish", synth.Parent)
	}
	if synth.Message != "add vimrc" {
		t.Errorf("synthesized message = %q, want the local head's message verbatim", synth.Message)
	}
	if len(f.PushCommitCalls) != 1 {
		t.Fatalf("PushCommitCalls = %v, want one", f.PushCommitCalls)
	}
	pc := f.PushCommitCalls[0]
	if pc.Remote != "mirror" || pc.Branch != "main" {
		t.Errorf("PushCommit target = %s/%s, want mirror/main", pc.Remote, pc.Branch)
	}
	if !pc.ExpectedOld.IsZero() {
		t.Errorf("ExpectedOld = %s, want zero on first publish", pc.ExpectedOld)
	}
	if len(f.SetTrackingCalls) != 1 || f.SetTrackingCalls[0].Remote != "mirror" {
		t.Errorf("SetTrackingCalls = %v, want one for mirror", f.SetTrackingCalls)
	}
}

func TestRun_NeverFetchesPublic(t *testing.T) {
	f := newFake(t)
	p := New(f, testConfig())

	if _, err := p.Run(context.Background(), Request{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, call := range f.FetchCalls {
		if call.Remote != "origin" {
			t.Errorf("fetched from %q; only the private remote may be fetched", call.Remote)
		}
	}
	if len(f.LsRemoteCalls) != 1 || f.LsRemoteCalls[0].Remote != "mirror" {
		t.Errorf("LsRemoteCalls = %v, want one ref listing of mirror", f.LsRemoteCalls)
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	f := newFake(t)
	p := New(f, testConfig())

	if _, err := p.Run(context.Background(), Request{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	res, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !res.NoOp {
		t.Error("second run should be a no-op")
	}
	if res.Divergence != gitx.UpToDate {
		t.Errorf("Divergence = %v, want up-to-date", res.Divergence)
	}
	if len(f.SynthesizeCalls) != 1 {
		t.Errorf("SynthesizeCalls = %d, want no new synthesis on the second run", len(f.SynthesizeCalls))
	}
	if len(f.PushCommitCalls) != 1 {
		t.Errorf("PushCommitCalls = %d, want no new push on the second run", len(f.PushCommitCalls))
	}
}

func TestRun_SuccessiveChangesChainOnPublicTip(t *testing.T) {
	f := newFake(t)
	p := New(f, testConfig())

	res1, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstSynth := plumbing.NewHash(res1.Synthesized)

	// A new local commit with a different filtered tree.
	newFiltered := plumbing.NewHash("5555555555555555555555555555555555555555")
	f.Heads["main"] = headB
	f.Trees[headB] = plumbing.NewHash("6666666666666666666666666666666666666666")
	f.Messages[headB] = "update zshrc"
	f.FilteredHash = newFiltered
	f.Div = gitx.Ahead

	res2, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if res2.PublicTip != firstSynth.String() {
		t.Errorf("PublicTip = %q, want first synthesized commit %s", res2.PublicTip, firstSynth)
	}
	if len(f.SynthesizeCalls) != 2 {
		t.Fatalf("SynthesizeCalls = %d, want 2", len(f.SynthesizeCalls))
	}
	second := f.SynthesizeCalls[1]
	if second.Parent != firstSynth {
		t.Errorf("second synthesized parent = %s, want %s", second.Parent, firstSynth)
	}
	if second.Tree != newFiltered {
		t.Errorf("second synthesized tree = %s, want %s", second.Tree, newFiltered)
	}
	if second.Message != "update zshrc" {
		t.Errorf("second synthesized message = %q, want %q", second.Message, "update zshrc")
	}
	if got := f.PushCommitCalls[1].ExpectedOld; got != firstSynth {
		t.Errorf("second push ExpectedOld = %s, want %s", got, firstSynth)
	}
}

func TestRun_AheadWithExistingPublicTip(t *testing.T) {
	f := newFake(t)
	f.RemoteHeads["mirror/main"] = pubTip
	// The tip's objects are local and its tree differs from the filtered one.
	f.Trees[pubTip] = plumbing.NewHash("4444444444444444444444444444444444444444")
	p := New(f, testConfig())

	res, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.PublicTip != pubTip.String() {
		t.Errorf("PublicTip = %q, want %q", res.PublicTip, pubTip)
	}
	if len(f.SynthesizeCalls) != 1 || f.SynthesizeCalls[0].Parent != pubTip {
		t.Errorf("SynthesizeCalls = %v, want parent %s", f.SynthesizeCalls, pubTip)
	}
	if len(f.PushCommitCalls) != 1 || f.PushCommitCalls[0].ExpectedOld != pubTip {
		t.Errorf("PushCommitCalls = %v, want ExpectedOld %s", f.PushCommitCalls, pubTip)
	}
}

func TestRun_PublicTipNotLocal(t *testing.T) {
	f := newFake(t)
	// Advertised tip with no local objects; the tree comparison is skipped
	// and the tip is still chained as the parent.
	f.RemoteHeads["mirror/main"] = pubTip
	p := New(f, testConfig())

	_, err := p.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.SynthesizeCalls) != 1 || f.SynthesizeCalls[0].Parent != pubTip {
		t.Errorf("SynthesizeCalls = %v, want parent %s", f.SynthesizeCalls, pubTip)
	}
}

func TestRun_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*gitx.FakeRepo)
		wantErr error
	}{
		{
			name:    "dirty worktree",
			mutate:  func(f *gitx.FakeRepo) { f.Clean = false },
			wantErr: ErrDirtyWorktree,
		},
		{
			name:    "wrong branch",
			mutate:  func(f *gitx.FakeRepo) { f.Branch = "feature" },
			wantErr: ErrWrongBranch,
		},
		{
			name:    "private remote missing",
			mutate:  func(f *gitx.FakeRepo) { delete(f.Remotes, "origin") },
			wantErr: gitx.ErrRemoteMissing,
		},
		{
			name:    "public remote missing",
			mutate:  func(f *gitx.FakeRepo) { delete(f.Remotes, "mirror") },
			wantErr: gitx.ErrRemoteMissing,
		},
		{
			name:    "branch missing",
			mutate:  func(f *gitx.FakeRepo) { delete(f.Heads, "main") },
			wantErr: gitx.ErrBranchMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(t)
			tt.mutate(f)
			p := New(f, testConfig())

			_, err := p.Run(context.Background(), Request{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if len(f.PushBranchCalls)+len(f.PushCommitCalls) != 0 {
				t.Error("nothing may be pushed when a precondition fails")
			}
		})
	}
}

func TestRun_Behind(t *testing.T) {
	f := newFake(t)
	f.RemoteHeads["origin/main"] = headB
	f.Div = gitx.Behind
	p := New(f, testConfig())

	_, err := p.Run(context.Background(), Request{})
	if !errors.Is(err, ErrBehind) {
		t.Fatalf("Run() error = %v, want ErrBehind", err)
	}
	if len(f.PushBranchCalls)+len(f.PushCommitCalls) != 0 {
		t.Error("nothing may be pushed when the local branch is behind")
	}
}

func TestRun_Diverged(t *testing.T) {
	f := newFake(t)
	f.RemoteHeads["origin/main"] = headB
	f.Div = gitx.Diverged
	f.LocalOnly = []gitx.CommitSummary{{Hash: headA, Title: "local change"}}
	f.RemoteOnly = []gitx.CommitSummary{{Hash: headB, Title: "remote change"}}
	p := New(f, testConfig())

	_, err := p.Run(context.Background(), Request{})

	var diverged *DivergedError
	if !errors.As(err, &diverged) {
		t.Fatalf("Run() error = %v, want *DivergedError", err)
	}
	if len(diverged.LocalOnly) != 1 || diverged.LocalOnly[0].Title != "local change" {
		t.Errorf("LocalOnly = %v", diverged.LocalOnly)
	}
	if len(diverged.RemoteOnly) != 1 || diverged.RemoteOnly[0].Title != "remote change" {
		t.Errorf("RemoteOnly = %v", diverged.RemoteOnly)
	}
	if len(f.PushBranchCalls)+len(f.PushCommitCalls) != 0 {
		t.Error("nothing may be pushed when histories have diverged")
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFake(t)
	p := New(f, testConfig())

	res, err := p.Run(context.Background(), Request{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !res.DryRun {
		t.Error("DryRun flag not set on result")
	}
	if !res.PrivatePushed || !res.PublicPushed {
		t.Errorf("dry-run result should report what would happen: %+v", res)
	}
	if res.Synthesized != "" {
		t.Errorf("Synthesized = %q, want empty in dry-run", res.Synthesized)
	}

	if n := len(f.PushBranchCalls) + len(f.SynthesizeCalls) + len(f.PushCommitCalls) + len(f.SetTrackingCalls); n != 0 {
		t.Errorf("dry-run made %d mutating calls, want none", n)
	}
}

func TestRun_PushCommitFailureLeavesTrackingAlone(t *testing.T) {
	f := newFake(t)
	f.PushCommitErr = errors.New("remote rejected update")
	p := New(f, testConfig())

	_, err := p.Run(context.Background(), Request{})
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if len(f.SetTrackingCalls) != 0 {
		t.Errorf("SetTrackingCalls = %v, want none after a failed push", f.SetTrackingCalls)
	}
	if _, ok := f.RemoteHeads["mirror/main"]; ok {
		t.Error("public tip advanced despite the failed push")
	}
}

func TestCheck(t *testing.T) {
	t.Run("in sync", func(t *testing.T) {
		f := newFake(t)
		f.RemoteHeads["origin/main"] = headA
		f.RemoteHeads["mirror/main"] = pubTip
		f.Trees[pubTip] = filtered
		p := New(f, testConfig())

		st, err := p.Check(context.Background())
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if st.Divergence != gitx.UpToDate {
			t.Errorf("Divergence = %v, want up-to-date", st.Divergence)
		}
		if st.PublicInSync == nil || !*st.PublicInSync {
			t.Errorf("PublicInSync = %v, want true", st.PublicInSync)
		}
		if len(f.PushBranchCalls)+len(f.PushCommitCalls) != 0 {
			t.Error("Check must not push")
		}
	})

	t.Run("public branch missing", func(t *testing.T) {
		f := newFake(t)
		f.RemoteHeads["origin/main"] = headA
		p := New(f, testConfig())

		st, err := p.Check(context.Background())
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if st.PublicInSync == nil || *st.PublicInSync {
			t.Errorf("PublicInSync = %v, want false when the public branch is absent", st.PublicInSync)
		}
	})

	t.Run("public tip not local", func(t *testing.T) {
		f := newFake(t)
		f.RemoteHeads["origin/main"] = headA
		f.RemoteHeads["mirror/main"] = pubTip
		p := New(f, testConfig())

		st, err := p.Check(context.Background())
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if st.PublicInSync != nil {
			t.Errorf("PublicInSync = %v, want nil when the tip cannot be inspected", st.PublicInSync)
		}
	})

	t.Run("dirty worktree is reported not fatal", func(t *testing.T) {
		f := newFake(t)
		f.Clean = false
		f.RemoteHeads["origin/main"] = headA
		p := New(f, testConfig())

		st, err := p.Check(context.Background())
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if st.Clean {
			t.Error("Clean = true, want false")
		}
	})
}
