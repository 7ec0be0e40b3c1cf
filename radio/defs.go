package radio

// Misc constants.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// Address is the I2C address of the FM core.
	Address = 0x22

	// ASIC_ID_NO_SWAP is the chip id whose RDS data bytes come in order.
	// Every other revision swaps the two bytes of each block.
	ASIC_ID_NO_SWAP = 0x6350

	// FREQ_UNDEFINED marks the receiver as not tuned.
	FREQ_UNDEFINED = 0xFFFFFFFF
)

// Register opcodes shared by the receiver and the transmitter.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// REG_FLAG_GET reads and clears the interrupt flag register.
	REG_FLAG_GET = 0x03

	// REG_INT_MASK_SET sets the interrupt mask.
	REG_INT_MASK_SET = 0x1a

	// REG_INTX_CONFIG sets the polarity of the interrupt line.
	REG_INTX_CONFIG = 0x21

	// REG_FIRM_VER_GET reads the firmware version.
	REG_FIRM_VER_GET = 0x29

	// REG_ASIC_VER_GET reads the chip revision.
	REG_ASIC_VER_GET = 0x2a

	// REG_ASIC_ID_GET reads the chip id.
	REG_ASIC_ID_GET = 0x2b
)

// Receiver register opcodes.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// REG_STEREO_GET reads the stereo indicator, 0 means mono.
	REG_STEREO_GET = 0x00

	// REG_RSSI_LEVEL_GET reads the signal level of the tuned channel.
	REG_RSSI_LEVEL_GET = 0x01

	// REG_RDS_SYNC_GET reads the RDS synchronisation state.
	REG_RDS_SYNC_GET = 0x04

	// REG_RDS_DATA_GET reads the RDS FIFO. It is also used to read the
	// channel list at the end of a complete scan.
	REG_RDS_DATA_GET = 0x05

	// REG_FREQ_SET sets or reads the channel index of the tuner.
	REG_FREQ_SET = 0x0a

	// REG_AF_FREQ_SET sets the channel index of the AF jump target.
	REG_AF_FREQ_SET = 0x0b

	// REG_MOST_MODE_SET selects forced mono or stereo.
	REG_MOST_MODE_SET = 0x0c

	// REG_MOST_BLEND_SET selects switched or blended stereo.
	REG_MOST_BLEND_SET = 0x0d

	// REG_DEMPH_MODE_SET selects the de-emphasis filter.
	REG_DEMPH_MODE_SET = 0x0e

	// REG_SEARCH_LVL_SET sets the RSSI threshold used by seek.
	REG_SEARCH_LVL_SET = 0x0f

	// REG_BAND_SET selects the band.
	REG_BAND_SET = 0x10

	// REG_MUTE_STATUS_SET sets the mute mode.
	REG_MUTE_STATUS_SET = 0x11

	// REG_RDS_MEM_SET sets the RDS FIFO threshold in blocks.
	REG_RDS_MEM_SET = 0x14

	// REG_RDS_PI_MASK_SET sets the PI mask used by AF jumps.
	REG_RDS_PI_MASK_SET = 0x17

	// REG_RDS_PI_SET sets the PI expected by AF jumps.
	REG_RDS_PI_SET = 0x18

	// REG_RDS_SYSTEM_SET selects RDS or RBDS.
	REG_RDS_SYSTEM_SET = 0x19

	// REG_SEARCH_DIR_SET sets the seek direction.
	REG_SEARCH_DIR_SET = 0x1b

	// REG_VOLUME_SET sets the audio gain.
	REG_VOLUME_SET = 0x1c

	// REG_AUDIO_ENABLE selects the enabled audio outputs.
	REG_AUDIO_ENABLE = 0x1d

	// REG_POWER_SET powers the receiver and RDS on or off.
	REG_POWER_SET = 0x20

	// REG_TUNER_MODE_SET starts and stops tuner operations.
	REG_TUNER_MODE_SET = 0x2d

	// REG_RDS_CNTRL_SET controls the RDS FIFO.
	REG_RDS_CNTRL_SET = 0x2f

	// REG_CHANNEL_SPACING_SET sets the seek step in units of 50 kHz.
	REG_CHANNEL_SPACING_SET = 0x38

	// REG_RX_CHANNEL_GET reports whether the tuned channel is valid and the
	// number of channels found by a complete scan.
	REG_RX_CHANNEL_GET = 0x7b
)

// Interrupt bits of the flag and mask registers.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// INT_FR signals that a tune, seek or jump operation ended.
	INT_FR = 0x0001

	// INT_BL signals that a seek reached the band limit.
	INT_BL = 0x0002

	// INT_RDS signals that the RDS FIFO reached its threshold.
	INT_RDS = 0x0004

	// INT_BBLK signals a bad RDS block.
	INT_BBLK = 0x0008

	// INT_LSYNC signals loss of RDS synchronisation.
	INT_LSYNC = 0x0010

	// INT_LEV signals the signal level dropped below the threshold.
	INT_LEV = 0x0020

	// INT_IFFR signals the IF frequency is out of range.
	INT_IFFR = 0x0040

	// INT_PI signals a PI code match.
	INT_PI = 0x0080

	// INT_PD signals the end of a power down.
	INT_PD = 0x0100

	// INT_STIC signals a stereo indicator change.
	INT_STIC = 0x0200

	// INT_MAL signals a chip malfunction.
	INT_MAL = 0x0400
)

// Register values.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	TUNER_MODE_STOP_SEARCH   = 0
	TUNER_MODE_PRESET        = 1
	TUNER_MODE_AUTO_SEARCH   = 2
	TUNER_MODE_AF_JUMP       = 3
	TUNER_MODE_COMPLETE_SCAN = 5

	POWER_OFF        = 0
	POWER_FM_ON      = 1
	POWER_FM_RDS_ON  = 3
	RDS_FLUSH_FIFO   = 1
	RDS_THRESHOLD    = 64
	RDS_PI_MASK_ALL  = 0xffff
	MOST_BLEND_ON    = 1
	INTX_ACTIVE_HIGH = 1

	MUTE_OFF          = 0
	MUTE_RF_DEPENDENT = 0x01
	MUTE_AC           = 0x02
	MUTE_SOFT_FORCE   = 0x10

	AUDIO_ENABLE_I2S    = 0x01
	AUDIO_ENABLE_ANALOG = 0x02

	SEARCH_DIR_UP   = 0
	SEARCH_DIR_DOWN = 1

	RX_CHANNEL_VALID      = 0x0080
	RX_CHANNEL_COUNT_MASK = 0x007f

	VOLUME_GAIN_STEP = 0x370
	VOLUME_GAIN_MAX  = 0xf170
)

// RDS block size in bytes: two data bytes and one status byte.
const rdsBlockSize = 3
