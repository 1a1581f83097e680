package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/modsync/internal/declarations"
	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/filesystem"
	"github.com/temirov/modsync/internal/gitrepo"
	"github.com/temirov/modsync/internal/modules/deploy"
	"github.com/temirov/modsync/internal/modules/shared"
	"github.com/temirov/modsync/internal/modules/testsupport"
)

const (
	testSourceURLConstant      = "ssh://x/mods/ntp.git"
	testLiveDirectoryConstant  = "/etc/modules/production/modules"
	testCacheDirectoryConstant = "/var/cache/modsync/production"
	testDefaultBranchConstant  = "main"
	upstreamHintConstant       = "@{upstream}"
)

// fakeGitWorld simulates remotes and working copies on an in-memory filesystem.
type fakeGitWorld struct {
	backend       afero.Fs
	defaultTags   map[string]string
	referenceTags map[string]string
	upstreamTags  map[string]string
	cloneFailures map[string]error
	pullFailure   error
	workingCopies map[string]string
	origins       map[string]string
	executor      *testsupport.CommandExecutorStub
}

func newFakeGitWorld(backend afero.Fs) *fakeGitWorld {
	world := &fakeGitWorld{
		backend:       backend,
		defaultTags:   map[string]string{},
		referenceTags: map[string]string{},
		upstreamTags:  map[string]string{},
		cloneFailures: map[string]error{},
		workingCopies: map[string]string{},
		origins:       map[string]string{},
	}
	world.executor = &testsupport.CommandExecutorStub{Handler: world.handle}
	return world
}

func (world *fakeGitWorld) handle(command execshell.ShellCommand) (execshell.ExecutionResult, bool, error) {
	arguments := command.Details.Arguments
	workingDirectory := command.Details.WorkingDirectory

	if command.Name == execshell.CommandRsync {
		destination := arguments[len(arguments)-1]
		return execshell.ExecutionResult{}, true, world.backend.MkdirAll(destination, 0o755)
	}

	switch arguments[0] {
	case "clone":
		sourceURL, directoryName := arguments[1], arguments[2]
		if failure, exists := world.cloneFailures[sourceURL]; exists {
			return execshell.ExecutionResult{}, true, failure
		}
		workingCopy := filepath.Join(workingDirectory, directoryName)
		world.origins[workingCopy] = sourceURL
		world.workingCopies[workingCopy] = world.defaultTags[sourceURL]
		return execshell.ExecutionResult{}, true, world.backend.MkdirAll(filepath.Join(workingCopy, ".git"), 0o755)
	case "checkout":
		reference := arguments[1]
		if reference == testDefaultBranchConstant {
			world.workingCopies[workingDirectory] = world.defaultTags[world.origins[workingDirectory]]
			return execshell.ExecutionResult{}, true, nil
		}
		tag, exists := world.referenceTags[reference]
		if !exists {
			return execshell.ExecutionResult{}, true, errors.New("pathspec did not match")
		}
		world.workingCopies[workingDirectory] = tag
		return execshell.ExecutionResult{}, true, nil
	case "branch":
		return execshell.ExecutionResult{StandardOutput: testDefaultBranchConstant + "\n"}, true, nil
	case "pull":
		if world.pullFailure != nil {
			return execshell.ExecutionResult{}, true, world.pullFailure
		}
		world.workingCopies[workingDirectory] = world.defaultTags[world.origins[workingDirectory]]
		return execshell.ExecutionResult{}, true, nil
	case "symbolic-ref":
		return execshell.ExecutionResult{StandardOutput: "origin/" + testDefaultBranchConstant}, true, nil
	case "describe":
		tag := world.workingCopies[workingDirectory]
		if arguments[len(arguments)-1] == upstreamHintConstant {
			tag = world.upstreamTags[world.origins[workingDirectory]]
		}
		if len(tag) == 0 {
			return execshell.ExecutionResult{}, true, errors.New("fatal: No names found")
		}
		return execshell.ExecutionResult{StandardOutput: tag + "\n"}, true, nil
	}
	return execshell.ExecutionResult{}, false, nil
}

func (world *fakeGitWorld) executedKeysContaining(fragment string) []string {
	var matches []string
	for _, key := range world.executor.ExecutedKeys() {
		if strings.Contains(key, fragment) {
			matches = append(matches, key)
		}
	}
	return matches
}

func newTestService(t *testing.T, world *fakeGitWorld, fileSystem filesystem.FileSystem, reporter shared.Reporter, settings Settings) *Service {
	t.Helper()
	versionResolver, versionError := gitrepo.NewVersionResolver(world.executor)
	require.NoError(t, versionError)
	branchSynchronizer, synchronizerError := gitrepo.NewBranchSynchronizer(world.executor)
	require.NoError(t, synchronizerError)
	repositoryOperator, operatorError := gitrepo.NewOperator(world.executor)
	require.NoError(t, operatorError)
	deployer, deployerError := deploy.NewDeployer(world.executor, "")
	require.NoError(t, deployerError)

	service, creationError := NewService(Dependencies{
		FileSystem:         fileSystem,
		VersionResolver:    versionResolver,
		BranchSynchronizer: branchSynchronizer,
		RepositoryOperator: repositoryOperator,
		Deployer:           deployer,
		Reporter:           reporter,
	}, settings)
	require.NoError(t, creationError)
	return service
}

func testEnvironment() shared.Environment {
	return shared.Environment{Name: "production", LiveDirectory: testLiveDirectoryConstant, CacheDirectory: testCacheDirectoryConstant}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	executor := &testsupport.CommandExecutorStub{}
	versionResolver, _ := gitrepo.NewVersionResolver(executor)
	branchSynchronizer, _ := gitrepo.NewBranchSynchronizer(executor)
	repositoryOperator, _ := gitrepo.NewOperator(executor)
	deployer, _ := deploy.NewDeployer(executor, "")
	complete := Dependencies{
		FileSystem:         filesystem.NewAferoFileSystem(afero.NewMemMapFs()),
		VersionResolver:    versionResolver,
		BranchSynchronizer: branchSynchronizer,
		RepositoryOperator: repositoryOperator,
		Deployer:           deployer,
		Reporter:           &testsupport.RecordingReporter{},
	}

	testCases := []struct {
		name        string
		mutate      func(*Dependencies)
		expectedErr error
	}{
		{name: "MissingFileSystem", mutate: func(dependencies *Dependencies) { dependencies.FileSystem = nil }, expectedErr: ErrFileSystemNotConfigured},
		{name: "MissingVersionResolver", mutate: func(dependencies *Dependencies) { dependencies.VersionResolver = nil }, expectedErr: ErrVersionResolverNotConfigured},
		{name: "MissingBranchSynchronizer", mutate: func(dependencies *Dependencies) { dependencies.BranchSynchronizer = nil }, expectedErr: ErrBranchSynchronizerNotConfigured},
		{name: "MissingRepositoryOperator", mutate: func(dependencies *Dependencies) { dependencies.RepositoryOperator = nil }, expectedErr: ErrRepositoryOperatorNotConfigured},
		{name: "MissingDeployer", mutate: func(dependencies *Dependencies) { dependencies.Deployer = nil }, expectedErr: ErrDeployerNotConfigured},
		{name: "MissingReporter", mutate: func(dependencies *Dependencies) { dependencies.Reporter = nil }, expectedErr: ErrReporterNotConfigured},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			dependencies := complete
			testCase.mutate(&dependencies)
			service, creationError := NewService(dependencies, Settings{})
			require.ErrorIs(t, creationError, testCase.expectedErr)
			require.Nil(t, service)
		})
	}
}

func TestReconcileRejectsInvalidModuleNameBeforeAnyCommand(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	for _, action := range []shared.Action{shared.ActionList, shared.ActionFetch, shared.ActionUpdate} {
		_, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "../etc", SourceURL: testSourceURLConstant}, action)
		var invalidName *declarations.InvalidModuleNameError
		require.ErrorAs(t, reconcileError, &invalidName)
	}
	require.Empty(t, world.executor.ExecutedCommands)

	exists, existsError := afero.DirExists(backend, testCacheDirectoryConstant)
	require.NoError(t, existsError)
	require.False(t, exists)
}

func TestReconcileFetchClonesNewModule(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v1.0"
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	outcome, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionFetch)
	require.NoError(t, reconcileError)
	require.Equal(t, Outcome{Module: "ntp", Version: "v1.0", PreviousVersion: "v1.0", Fetched: true}, outcome)
	require.Equal(t, []string{"Fetched new module production/ntp (v1.0)"}, reporter.Reports)
	require.Equal(t, []string{"git clone " + testSourceURLConstant + " ntp"}, world.executedKeysContaining("clone"))
	require.Equal(t, testCacheDirectoryConstant, world.executor.ExecutedCommands[0].Details.WorkingDirectory)
	require.Empty(t, world.executedKeysContaining("rsync"))

	liveExists, liveError := afero.DirExists(backend, testLiveDirectoryConstant)
	require.NoError(t, liveError)
	require.True(t, liveExists)
}

func TestReconcileFetchWithoutTagsReportsSentinel(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	outcome, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionFetch)
	require.NoError(t, reconcileError)
	require.Equal(t, gitrepo.MissingVersionTagConstant, outcome.Version)
	require.Equal(t, []string{"Fetched new module production/ntp (missing_version_tag)"}, reporter.Reports)
}

func TestReconcileUpdateIsIdempotent(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v1.0"
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})
	declaration := declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}

	firstOutcome, firstError := service.Reconcile(context.Background(), testEnvironment(), declaration, shared.ActionUpdate)
	require.NoError(t, firstError)
	require.True(t, firstOutcome.Installed)

	secondOutcome, secondError := service.Reconcile(context.Background(), testEnvironment(), declaration, shared.ActionUpdate)
	require.NoError(t, secondError)
	require.Equal(t, Outcome{Module: "ntp", Version: "v1.0", PreviousVersion: "v1.0", Fetched: true}, secondOutcome)

	require.Equal(t, []string{"Fetched new module production/ntp (v1.0)", "Updated production/ntp (v1.0)"}, reporter.Reports)
	require.Equal(t, []string{"Installed production/ntp (v1.0)"}, reporter.Events)
	require.Equal(t, []string{
		"rsync --archive --delete --exclude=.git " + testCacheDirectoryConstant + "/ntp/ " + testLiveDirectoryConstant + "/ntp",
		"rsync --archive --delete --exclude=.git " + testCacheDirectoryConstant + "/ntp/ " + testLiveDirectoryConstant + "/ntp",
	}, world.executedKeysContaining("rsync"))
	require.Equal(t, []string{"git checkout main", "git checkout main"}, world.executedKeysContaining("checkout"))
}

func TestReconcileReportsReferenceChange(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v2.0"
	world.referenceTags["1.0.0"] = "1.0.0"
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	_, firstError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionFetch)
	require.NoError(t, firstError)

	outcome, secondError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant, Reference: "1.0.0"}, shared.ActionFetch)
	require.NoError(t, secondError)
	require.True(t, outcome.Changed)
	require.Equal(t, "v2.0", outcome.PreviousVersion)
	require.Equal(t, "1.0.0", outcome.Version)
	require.Equal(t, []string{"Changed production/ntp from v2.0 to 1.0.0"}, reporter.Events)
	require.Equal(t, "git checkout 1.0.0", world.executedKeysContaining("checkout")[1])

	unpinnedOutcome, thirdError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionFetch)
	require.NoError(t, thirdError)
	require.True(t, unpinnedOutcome.Changed)
	require.Equal(t, "v2.0", unpinnedOutcome.Version)
}

func TestReconcileCloneFailureIsRecoverable(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.cloneFailures[testSourceURLConstant] = errors.New("repository not found")
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	outcome, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionUpdate)
	require.NoError(t, reconcileError)
	require.True(t, outcome.Skipped)
	require.Len(t, reporter.Warnings, 1)
	require.True(t, strings.HasPrefix(reporter.Warnings[0], "Unable to clone production/ntp from "+testSourceURLConstant+": "))
	require.Contains(t, reporter.Warnings[0], "repository not found")
	require.Empty(t, world.executedKeysContaining("rsync"))
}

func TestReconcileWarnsOnRecoverableGitFailures(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v1.0"
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	_, firstError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionFetch)
	require.NoError(t, firstError)

	world.pullFailure = errors.New("not possible to fast-forward")
	outcome, secondError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant, Reference: "missing"}, shared.ActionFetch)
	require.NoError(t, secondError)
	require.False(t, outcome.Skipped)
	require.Len(t, reporter.Warnings, 2)
	require.True(t, strings.HasPrefix(reporter.Warnings[0], "Unable to synchronize branches of production/ntp: "))
	require.True(t, strings.HasPrefix(reporter.Warnings[1], "Unable to check out missing of production/ntp: "))
	require.Equal(t, "Fetched production/ntp (v1.0)", reporter.Reports[len(reporter.Reports)-1])
}

func TestReconcileDeployFailureIsFatal(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v1.0"
	deployFailure := errors.New("rsync exited with code 23")
	handler := world.executor.Handler
	world.executor.Handler = func(command execshell.ShellCommand) (execshell.ExecutionResult, bool, error) {
		if command.Name == execshell.CommandRsync {
			return execshell.ExecutionResult{}, true, deployFailure
		}
		return handler(command)
	}
	reporter := &testsupport.RecordingReporter{}
	service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, Settings{})

	_, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionUpdate)
	var deployError *deploy.DeployError
	require.ErrorAs(t, reconcileError, &deployError)
	require.ErrorIs(t, reconcileError, deployFailure)
	require.Empty(t, reporter.Events)
}

func TestReconcileList(t *testing.T) {
	testCases := []struct {
		name             string
		settings         Settings
		fetchFirst       bool
		expectedReports  []string
		expectedWarnings []string
	}{
		{
			name:             "NotFetched",
			expectedWarnings: []string{"Module production/ntp has not been fetched"},
		},
		{
			name:            "Plain",
			fetchFirst:      true,
			expectedReports: []string{"production/ntp v1.0"},
		},
		{
			name:            "VerboseWithDivergedRemote",
			settings:        Settings{Verbose: true},
			fetchFirst:      true,
			expectedReports: []string{"production/ntp v1.0 (remote v1.1)"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			backend := afero.NewMemMapFs()
			world := newFakeGitWorld(backend)
			world.defaultTags[testSourceURLConstant] = "v1.0"
			world.upstreamTags[testSourceURLConstant] = "v1.1"
			declaration := declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}

			if testCase.fetchFirst {
				fetchService := newTestService(t, world, filesystem.NewAferoFileSystem(backend), &testsupport.RecordingReporter{}, Settings{})
				_, fetchError := fetchService.Reconcile(context.Background(), testEnvironment(), declaration, shared.ActionFetch)
				require.NoError(t, fetchError)
			}
			commandCountBeforeList := len(world.executor.ExecutedCommands)

			reporter := &testsupport.RecordingReporter{}
			service := newTestService(t, world, filesystem.NewAferoFileSystem(backend), reporter, testCase.settings)
			_, listError := service.Reconcile(context.Background(), testEnvironment(), declaration, shared.ActionList)
			require.NoError(t, listError)
			require.Equal(t, testCase.expectedReports, reporter.Reports)
			require.Equal(t, testCase.expectedWarnings, reporter.Warnings)

			for _, command := range world.executor.ExecutedCommands[commandCountBeforeList:] {
				require.False(t, command.Details.Mutating, testsupport.CommandKey(command))
			}
		})
	}
}

func TestReconcileInTestModeMakesNoChanges(t *testing.T) {
	backend := afero.NewMemMapFs()
	world := newFakeGitWorld(backend)
	world.defaultTags[testSourceURLConstant] = "v1.0"
	reporter := &testsupport.RecordingReporter{}
	dryRunFileSystem := filesystem.NewDryRunFileSystem(filesystem.NewAferoFileSystem(backend))

	handler := world.executor.Handler
	world.executor.Handler = func(command execshell.ShellCommand) (execshell.ExecutionResult, bool, error) {
		if command.Details.Mutating {
			return execshell.ExecutionResult{}, true, nil
		}
		return handler(command)
	}
	service := newTestService(t, world, dryRunFileSystem, reporter, Settings{})

	outcome, reconcileError := service.Reconcile(context.Background(), testEnvironment(), declarations.ModuleDeclaration{Name: "ntp", SourceURL: testSourceURLConstant}, shared.ActionUpdate)
	require.NoError(t, reconcileError)
	require.True(t, outcome.Fetched)
	require.False(t, outcome.Installed)
	require.Equal(t, []string{"Fetched new module production/ntp (missing_version_tag)"}, reporter.Reports)

	for _, directory := range []string{testLiveDirectoryConstant, testCacheDirectoryConstant} {
		exists, existsError := afero.DirExists(backend, directory)
		require.NoError(t, existsError)
		require.False(t, exists, directory)
	}
}
