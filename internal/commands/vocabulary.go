package commands

import "strings"

// Category groups command types by the agent module that executes them.
type Category string

const (
	CategoryProtocol         Category = "protocol"
	CategoryDiagnostics      Category = "diagnostics"
	CategoryInventory        Category = "inventory"
	CategoryRemoteOperations Category = "remote_operations"
	CategoryDesktop          Category = "desktop"
	CategoryFileMonitoring   Category = "file_monitoring"
	CategorySecurity         Category = "security"
	CategoryEventLog         Category = "event_log"
	CategorySoftware         Category = "software"
	CategoryMaintenance      Category = "maintenance"
	CategoryMessaging        Category = "messaging"
	CategoryHealth           Category = "health"
	CategoryPrivacy          Category = "privacy"
	CategoryAudit            Category = "audit"
	CategoryScripts          Category = "scripts"
)

// Command types the agent understands. The wire form is the lowercase
// string; constants exist so server code never passes raw literals.
const (
	// Protocol
	CmdServerHello = "serverhello"
	CmdRegistered  = "registered"
	CmdError       = "error"

	// Diagnostics
	CmdPing              = "ping"
	CmdStatus            = "status"
	CmdAgentInfo         = "agentinfo"
	CmdVersions          = "versions"
	CmdConnectionDetails = "connectiondetails"

	// Inventory
	CmdGetFullInventory     = "getfullinventory"
	CmdGetInstalledSoftware = "getinstalledsoftware"
	CmdGetInstalledPatches  = "getinstalledpatches"
	CmdGetPendingUpdates    = "getpendingupdates"
	CmdSysInfo              = "sysinfo"
	CmdCPUInfo              = "cpuinfo"
	CmdNetInfo              = "netinfo"
	CmdSMBIOS               = "smbios"
	CmdVMDetect             = "vm"
	CmdWifiScan             = "wifiscan"
	CmdPerfCounters         = "perfcounters"

	// Remote operations
	CmdConsole      = "console"
	CmdPower        = "power"
	CmdService      = "service"
	CmdListFiles    = "ls"
	CmdDownload     = "download"
	CmdUpload       = "upload"
	CmdMakeDir      = "mkdir"
	CmdRemove       = "rm"
	CmdZip          = "zip"
	CmdUnzip        = "unzip"
	CmdOpenURL      = "openurl"
	CmdWallpaper    = "wallpaper"
	CmdKvmMode      = "kvmmode"
	CmdWakeOnLan    = "wakeonlan"
	CmdClipboardGet = "clipboardget"
	CmdClipboardSet = "clipboardset"

	// Desktop
	CmdDesktopStart      = "desktopstart"
	CmdDesktopStop       = "desktopstop"
	CmdDesktopFrame      = "desktopframe"
	CmdDesktopMouseMove  = "desktopmousemove"
	CmdDesktopMouseClick = "desktopmouseclick"
	CmdDesktopMouseDown  = "desktopmousedown"
	CmdDesktopMouseUp    = "desktopmouseup"
	CmdDesktopKeyDown    = "desktopkeydown"
	CmdDesktopKeyUp      = "desktopkeyup"
	CmdDesktopKeyPress   = "desktopkeypress"

	// File monitoring
	CmdStartFileMonitor = "startfilemonitor"
	CmdStopFileMonitor  = "stopfilemonitor"
	CmdGetFileChanges   = "getfilechanges"
	CmdListMonitors     = "listmonitors"

	// Security
	CmdGetSecurityStatus   = "getsecuritystatus"
	CmdGetAntivirusStatus  = "getantivirusstatus"
	CmdGetFirewallStatus   = "getfirewallstatus"
	CmdGetDefenderStatus   = "getdefenderstatus"
	CmdGetUacStatus        = "getuacstatus"
	CmdGetEncryptionStatus = "getencryptionstatus"

	// Event log
	CmdGetEventLogs         = "geteventlogs"
	CmdGetSecurityEvents    = "getsecurityevents"
	CmdGetApplicationEvents = "getapplicationevents"
	CmdGetSystemEvents      = "getsystemevents"
	CmdStartEventMonitor    = "starteventmonitor"
	CmdStopEventMonitor     = "stopeventmonitor"
	CmdClearEventLog        = "cleareventlog"

	// Software distribution
	CmdInstallSoftware   = "installsoftware"
	CmdUninstallSoftware = "uninstallsoftware"
	CmdInstallUpdates    = "installupdates"
	CmdSchedulePatch     = "schedulepatch"

	// Maintenance
	CmdAgentUpdate   = "agentupdate"
	CmdAgentUpdateEx = "agentupdateex"
	CmdDownloadFile  = "downloadfile"
	CmdReinstall     = "reinstall"
	CmdLog           = "log"

	// Scripts
	CmdScriptDeploy = "scriptdeploy"
	CmdScriptReload = "scriptreload"
	CmdScriptList   = "scriptlist"
	CmdScriptRemove = "scriptremove"

	// Messaging
	CmdAgentMsg   = "agentmsg"
	CmdMessageBox = "messagebox"
	CmdNotify     = "notify"
	CmdToast      = "toast"
	CmdChat       = "chat"
	CmdWebRtcSdp  = "webrtcsdp"
	CmdWebRtcIce  = "webrtcice"

	// Health
	CmdHealth  = "health"
	CmdMetrics = "metrics"
	CmdUptime  = "uptime"

	// Privacy
	CmdPrivacyBarShow = "privacybarshow"
	CmdPrivacyBarHide = "privacybarhide"

	// Audit
	CmdGetAuditLogs   = "getauditlogs"
	CmdClearAuditLogs = "clearauditlogs"
)

// categoryByCommand is the single source of truth for the vocabulary.
// Every valid command appears here exactly once; classification is a map
// lookup, never pattern matching on the command string.
var categoryByCommand = map[string]Category{
	CmdServerHello: CategoryProtocol,
	CmdRegistered:  CategoryProtocol,
	CmdError:       CategoryProtocol,

	CmdPing:              CategoryDiagnostics,
	CmdStatus:            CategoryDiagnostics,
	CmdAgentInfo:         CategoryDiagnostics,
	CmdVersions:          CategoryDiagnostics,
	CmdConnectionDetails: CategoryDiagnostics,

	CmdGetFullInventory:     CategoryInventory,
	CmdGetInstalledSoftware: CategoryInventory,
	CmdGetInstalledPatches:  CategoryInventory,
	CmdGetPendingUpdates:    CategoryInventory,
	CmdSysInfo:              CategoryInventory,
	CmdCPUInfo:              CategoryInventory,
	CmdNetInfo:              CategoryInventory,
	CmdSMBIOS:               CategoryInventory,
	CmdVMDetect:             CategoryInventory,
	CmdWifiScan:             CategoryInventory,
	CmdPerfCounters:         CategoryInventory,

	CmdConsole:      CategoryRemoteOperations,
	CmdPower:        CategoryRemoteOperations,
	CmdService:      CategoryRemoteOperations,
	CmdListFiles:    CategoryRemoteOperations,
	CmdDownload:     CategoryRemoteOperations,
	CmdUpload:       CategoryRemoteOperations,
	CmdMakeDir:      CategoryRemoteOperations,
	CmdRemove:       CategoryRemoteOperations,
	CmdZip:          CategoryRemoteOperations,
	CmdUnzip:        CategoryRemoteOperations,
	CmdOpenURL:      CategoryRemoteOperations,
	CmdWallpaper:    CategoryRemoteOperations,
	CmdKvmMode:      CategoryRemoteOperations,
	CmdWakeOnLan:    CategoryRemoteOperations,
	CmdClipboardGet: CategoryRemoteOperations,
	CmdClipboardSet: CategoryRemoteOperations,

	CmdDesktopStart:      CategoryDesktop,
	CmdDesktopStop:       CategoryDesktop,
	CmdDesktopFrame:      CategoryDesktop,
	CmdDesktopMouseMove:  CategoryDesktop,
	CmdDesktopMouseClick: CategoryDesktop,
	CmdDesktopMouseDown:  CategoryDesktop,
	CmdDesktopMouseUp:    CategoryDesktop,
	CmdDesktopKeyDown:    CategoryDesktop,
	CmdDesktopKeyUp:      CategoryDesktop,
	CmdDesktopKeyPress:   CategoryDesktop,

	CmdStartFileMonitor: CategoryFileMonitoring,
	CmdStopFileMonitor:  CategoryFileMonitoring,
	CmdGetFileChanges:   CategoryFileMonitoring,
	CmdListMonitors:     CategoryFileMonitoring,

	CmdGetSecurityStatus:   CategorySecurity,
	CmdGetAntivirusStatus:  CategorySecurity,
	CmdGetFirewallStatus:   CategorySecurity,
	CmdGetDefenderStatus:   CategorySecurity,
	CmdGetUacStatus:        CategorySecurity,
	CmdGetEncryptionStatus: CategorySecurity,

	CmdGetEventLogs:         CategoryEventLog,
	CmdGetSecurityEvents:    CategoryEventLog,
	CmdGetApplicationEvents: CategoryEventLog,
	CmdGetSystemEvents:      CategoryEventLog,
	CmdStartEventMonitor:    CategoryEventLog,
	CmdStopEventMonitor:     CategoryEventLog,
	CmdClearEventLog:        CategoryEventLog,

	CmdInstallSoftware:   CategorySoftware,
	CmdUninstallSoftware: CategorySoftware,
	CmdInstallUpdates:    CategorySoftware,
	CmdSchedulePatch:     CategorySoftware,

	CmdAgentUpdate:   CategoryMaintenance,
	CmdAgentUpdateEx: CategoryMaintenance,
	CmdDownloadFile:  CategoryMaintenance,
	CmdReinstall:     CategoryMaintenance,
	CmdLog:           CategoryMaintenance,

	CmdScriptDeploy: CategoryScripts,
	CmdScriptReload: CategoryScripts,
	CmdScriptList:   CategoryScripts,
	CmdScriptRemove: CategoryScripts,

	CmdAgentMsg:   CategoryMessaging,
	CmdMessageBox: CategoryMessaging,
	CmdNotify:     CategoryMessaging,
	CmdToast:      CategoryMessaging,
	CmdChat:       CategoryMessaging,
	CmdWebRtcSdp:  CategoryMessaging,
	CmdWebRtcIce:  CategoryMessaging,

	CmdHealth:  CategoryHealth,
	CmdMetrics: CategoryHealth,
	CmdUptime:  CategoryHealth,

	CmdPrivacyBarShow: CategoryPrivacy,
	CmdPrivacyBarHide: CategoryPrivacy,

	CmdGetAuditLogs:   CategoryAudit,
	CmdClearAuditLogs: CategoryAudit,
}

// IsValid reports whether commandType is in the agent vocabulary.
// Matching is case-insensitive; the canonical form is lowercase.
func IsValid(commandType string) bool {
	_, ok := categoryByCommand[strings.ToLower(commandType)]
	return ok
}

// CategoryOf returns the category of a valid command type. The second
// return is false for unknown commands; callers must validate first and
// never receive a fallback category.
func CategoryOf(commandType string) (Category, bool) {
	c, ok := categoryByCommand[strings.ToLower(commandType)]
	return c, ok
}

// AllCommands returns the full vocabulary. Order is unspecified.
func AllCommands() []string {
	out := make([]string, 0, len(categoryByCommand))
	for cmd := range categoryByCommand {
		out = append(out, cmd)
	}
	return out
}
