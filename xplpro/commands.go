package xplpro

// Frame delimiters and the field separator of the XPLPro wire format.
const (
	frameStart = '['
	frameEnd   = ']'
	fieldSep   = ','
)

// DefaultBaudRate is the serial line rate the XPLPro plugin expects.
const DefaultBaudRate = 115200

// HandleInvalid is the sentinel handle value meaning "name not found".
const HandleInvalid = -1

// Commands sent by the host plugin (generally upper case).
const (
	// cmdSendName asks the device to identify itself.
	cmdSendName = 'N'
	// cmdSendRequest signals the host is ready to accept registrations.
	cmdSendRequest = 'Q'
	// rspDataref carries a resolved dataref handle: handle, name.
	rspDataref = 'D'
	// rspCommand carries a resolved command handle: handle, name.
	rspCommand = 'C'
	// cmdExiting announces a normal host shutdown.
	cmdExiting = 'X'

	// Value update frames, one per payload shape.
	cmdUpdateInt        = '1' // handle, value
	cmdUpdateFloat      = '2' // handle, value
	cmdUpdateIntArray   = '3' // handle, element, value
	cmdUpdateFloatArray = '4' // handle, element, value
	cmdUpdateString     = '9' // handle, length, bytes
)

// Flow control commands. The host sends them to gate the device's output;
// the device sends the same codes to gate the host's update stream.
const (
	cmdFlowPause  = 'p'
	cmdFlowResume = 'q'
	cmdFlowSpeed  = 'f' // bytes per second, 0 = unlimited
)

// Requests and notices sent by the device (generally lower case).
const (
	rspName    = 'n' // device name, sent in reply to cmdSendName
	rspVersion = 'v' // build identifier, sent in reply to cmdSendName

	reqRegisterDataref = 'b' // dataref name
	reqRegisterCommand = 'm' // command name

	reqUpdates          = 'r' // handle, rate, precision
	reqUpdatesArray     = 't' // handle, rate, precision, element
	reqUpdatesType      = 'y' // handle, type, rate, precision
	reqUpdatesTypeArray = 'w' // handle, type, rate, precision, element

	reqTouch   = 'd' // handle: force a one-off refresh
	reqScaling = 'u' // handle, inLow, inHigh, outLow, outHigh

	cmdTrigger = 'k' // handle, count
	cmdStart   = 'i' // handle
	cmdEnd     = 'j' // handle

	cmdDebug = 'g' // text, logged by the plugin
	cmdSpeak = 's' // text, spoken by the simulator
	cmdReset = 'z' // request full reset and re-registration

	cmdSpecial = '$' // sub-command, args...
)

// Sub-codes of cmdSpecial. These map to simulator key/button injection calls
// the host SDK considers deprecated but that remain useful for panels.
const (
	specialSimKeyPress      = 1 // key type, key
	specialCmdKeystroke     = 2 // key
	specialCmdButtonPress   = 3 // button
	specialCmdButtonRelease = 4 // button
)

// DataType identifies a simulator dataref value type for type-forced update
// requests. The numeric values come from the host SDK and may be combined as
// bit flags by datarefs that support more than one representation.
type DataType int

const (
	TypeUnknown    DataType = 0
	TypeInt        DataType = 1
	TypeFloat      DataType = 2
	TypeDouble     DataType = 4
	TypeFloatArray DataType = 8
	TypeIntArray   DataType = 16
	TypeData       DataType = 32
)
