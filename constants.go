//go:build linux

package uring

import "github.com/ehrlich-b/go-uring/internal/sys"

// Re-export the ABI constants callers need for the public API

// Setup flags
const (
	SetupIOPoll   = sys.IORING_SETUP_IOPOLL
	SetupSQPoll   = sys.IORING_SETUP_SQPOLL
	SetupSQAff    = sys.IORING_SETUP_SQ_AFF
	SetupCQSize   = sys.IORING_SETUP_CQSIZE
	SetupClamp    = sys.IORING_SETUP_CLAMP
	SetupAttachWQ = sys.IORING_SETUP_ATTACH_WQ
)

// Feature bits granted by the kernel
const (
	FeatSingleMmap     = sys.IORING_FEAT_SINGLE_MMAP
	FeatNoDrop         = sys.IORING_FEAT_NODROP
	FeatSubmitStable   = sys.IORING_FEAT_SUBMIT_STABLE
	FeatRWCurPos       = sys.IORING_FEAT_RW_CUR_POS
	FeatCurPersonality = sys.IORING_FEAT_CUR_PERSONALITY
	FeatFastPoll       = sys.IORING_FEAT_FAST_POLL
)

// Enter flags for the raw Enter escape hatch
const (
	EnterGetEvents = sys.IORING_ENTER_GETEVENTS
	EnterSQWakeup  = sys.IORING_ENTER_SQ_WAKEUP
)

// Register opcodes for Submitter.Register/Unregister
const (
	RegisterBuffers     = sys.IORING_REGISTER_BUFFERS
	UnregisterBuffers   = sys.IORING_UNREGISTER_BUFFERS
	RegisterFiles       = sys.IORING_REGISTER_FILES
	UnregisterFiles     = sys.IORING_UNREGISTER_FILES
	RegisterEventfd     = sys.IORING_REGISTER_EVENTFD
	UnregisterEventfd   = sys.IORING_UNREGISTER_EVENTFD
	RegisterFilesUpdate = sys.IORING_REGISTER_FILES_UPDATE
	RegisterProbe       = sys.IORING_REGISTER_PROBE
)
